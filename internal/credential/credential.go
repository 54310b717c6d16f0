// Package credential implements the external credential source named in
// spec.md §6: process environment variables, read once at startup and
// treated as read-only afterward.
package credential

import (
	"fmt"
	"os"
	"strings"
)

// Credential is a resolved username/password or username/key-path pair for
// one credential id.
type Credential struct {
	ID       string
	Username string
	Password string
	KeyPath  string
}

// HasKey reports whether a private key path was configured for this
// credential.
func (c Credential) HasKey() bool {
	return c.KeyPath != ""
}

// Source is a snapshot of CRED_<ID>_USER / CRED_<ID>_PASS / CRED_<ID>_KEY
// triples taken from the process environment at construction time.
type Source struct {
	byID map[string]Credential
}

// LoadFromEnv scans the process environment for CRED_*_USER variables and
// builds a Source from the matching CRED_*_PASS and CRED_*_KEY variables. A
// credential id missing its PASS variable is still recorded if a KEY
// variable is present (SSH keys may be used without a password, per §6).
func LoadFromEnv() *Source {
	byID := make(map[string]Credential)
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "CRED_") || !strings.HasSuffix(key, "_USER") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(key, "CRED_"), "_USER")
		if id == "" {
			continue
		}
		byID[id] = Credential{
			ID:       id,
			Username: os.Getenv("CRED_" + id + "_USER"),
			Password: os.Getenv("CRED_" + id + "_PASS"),
			KeyPath:  os.Getenv("CRED_" + id + "_KEY"),
		}
	}
	return &Source{byID: byID}
}

// MissingCredentialError is returned by Resolve when the id is unknown or
// incomplete. It surfaces as CredentialMissing in the Device Runner (§7).
type MissingCredentialError struct {
	ID string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("credential %q: CRED_%s_USER/CRED_%s_PASS (or _KEY) not set", e.ID, e.ID, e.ID)
}

// Resolve looks up a credential by its inventory-document id. A credential
// with neither a password nor a key path is treated as missing.
func (s *Source) Resolve(id string) (Credential, error) {
	cred, ok := s.byID[id]
	if !ok || cred.Username == "" || (cred.Password == "" && cred.KeyPath == "") {
		return Credential{}, &MissingCredentialError{ID: id}
	}
	return cred, nil
}
