package eap

import "fmt"

// identityAuthMethod implements the Authenticator side of EAP Identity
// (RFC 3748 Section 5.1): it requests the peer's name and hands off to the
// next configured method once learned. It is never NAK-selectable — it is
// not a real negotiable authentication method.
type identityAuthMethod struct{}

// NewIdentityAuthMethod returns the Authenticator-side Identity method.
func NewIdentityAuthMethod() AuthMethod { return identityAuthMethod{} }

func (identityAuthMethod) MethodID() MethodType   { return MethodIdentity }
func (identityAuthMethod) SelectableByNAK() bool  { return false }

func (identityAuthMethod) Start(env Environment) (Output, error) {
	return SendOutput(Respond(env)), nil
}

func (identityAuthMethod) Recv(payload []byte, _ RecvMeta, env Environment) (Output, error) {
	env.SetName(payload)
	return NextLayerOutput(), nil
}

// identityPeerMethod implements the Peer side of EAP Identity: it replies
// to an (empty-bodied) Identity Request with the configured identity.
type identityPeerMethod struct {
	identity []byte
}

// NewIdentityPeerMethod returns the Peer-side Identity method, responding
// with identity when asked.
func NewIdentityPeerMethod(identity []byte) PeerMethod {
	return &identityPeerMethod{identity: identity}
}

func (*identityPeerMethod) MethodID() MethodType  { return MethodIdentity }
func (*identityPeerMethod) SelectableByNAK() bool { return false }
func (*identityPeerMethod) CanSucceed() *bool      { return nil }

func (m *identityPeerMethod) Recv(payload []byte, _ RecvMeta, env Environment) (Output, error) {
	if len(payload) != 0 {
		return Output{}, fmt.Errorf("%w: identity request carries unexpected payload", ErrInternal)
	}
	return SendOutput(Respond(env).Write(m.identity)), nil
}
