package entities

// SigningIdentity is the development signing identity shared by every
// run under the same scratch root. It is created lazily on first use,
// persisted, and reused read-only afterwards.
type SigningIdentity struct {
	KeystorePath string
	Alias        string
	Password     string

	// CertPath points at the DER-encoded certificate exported next to
	// the keystore; KeyPath is set only when the identity was
	// provisioned without keytool and the RSA key lives in a PEM file.
	CertPath string
	KeyPath  string
}

// SignState is the terminal state of the signing stage
type SignState string

const (
	// Signed means the external signing tool produced a real signature
	Signed SignState = "SIGNED"

	// SignFallback means the structural MANIFEST.MF/CERT.SF/CERT.RSA
	// triple was written instead of a cryptographically valid signature
	SignFallback SignState = "SIGN_FALLBACK"
)
