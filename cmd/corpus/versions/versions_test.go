package versionscmder_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versionscmder "github.com/inkwellco/corpus/cmd/corpus/versions"
)

var _ = Describe("NewVersionsCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := versionscmder.NewVersionsCmd()
		Expect(cmd.Use).To(Equal("versions"))
	})

	It("has list, activate, rollback, delete, and prune subcommands", func() {
		cmd := versionscmder.NewVersionsCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("list", "activate", "rollback", "delete", "prune"))
	})
})

var _ = Describe("Versions command execution", func() {
	// The --api-target flag bypasses config resolution, so these run
	// against a stub server without touching any .corpus directory.

	It("lists versions from the API", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodGet))
			Expect(r.URL.Path).To(Equal("/v1/versions"))
			json.NewEncoder(w).Encode(map[string]any{
				"versions": []map[string]any{
					{"id": "v000001", "status": "READY", "records": 12, "created_at": "2026-08-01T10:00:00Z"},
					{"id": "v000002", "status": "FAILED", "records": 0, "created_at": "2026-08-02T10:00:00Z"},
				},
				"live": "v000001",
			})
		}))
		defer server.Close()

		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"list", "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())
	})

	It("activates a version through the API", func() {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			gotPath = r.URL.Path
			json.NewEncoder(w).Encode(map[string]any{"live": "v000042"})
		}))
		defer server.Close()

		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"activate", "v000042", "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())
		Expect(gotPath).To(Equal("/v1/versions/v000042/activate"))
	})

	It("deletes a version through the API", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodDelete))
			Expect(r.URL.Path).To(Equal("/v1/versions/v000002"))
			json.NewEncoder(w).Encode(map[string]any{"deleted": "v000002"})
		}))
		defer server.Close()

		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"delete", "v000002", "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())
	})

	It("surfaces API error envelopes", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"error": "cannot delete the live version"})
		}))
		defer server.Close()

		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"delete", "v000001", "--api-target", server.URL})
		err := cmd.Execute()
		Expect(err).To(MatchError(ContainSubstring("cannot delete the live version")))
		Expect(err).To(MatchError(ContainSubstring("HTTP 409")))
	})

	It("sends the keep window when pruning", func() {
		var gotBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/versions/prune"))
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
			json.NewEncoder(w).Encode(map[string]any{"retired": []string{"v000001"}})
		}))
		defer server.Close()

		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"prune", "--keep", "2", "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())
		Expect(gotBody["keep"]).To(BeNumerically("==", 2))
	})

	It("requires a version id for activate", func() {
		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"activate", "--api-target", "http://127.0.0.1:1"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})

	It("rejects arguments to list", func() {
		cmd := versionscmder.NewVersionsCmd()
		cmd.SetArgs([]string{"list", "extra", "--api-target", "http://127.0.0.1:1"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
