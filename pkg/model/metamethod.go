package model

// Signature describes the call shape of a method.
type Signature uint8

const (
	// SignatureVoidVoid takes no parameter and returns nothing.
	SignatureVoidVoid Signature = 0

	// SignatureVoidParam takes a parameter and returns nothing.
	SignatureVoidParam Signature = 1

	// SignatureRetVoid takes no parameter and returns a value.
	SignatureRetVoid Signature = 2

	// SignatureRetParam takes a parameter and returns a value.
	SignatureRetParam Signature = 3
)

// String returns the signature name.
func (s Signature) String() string {
	switch s {
	case SignatureVoidVoid:
		return "VoidVoid"
	case SignatureVoidParam:
		return "VoidParam"
	case SignatureRetVoid:
		return "RetVoid"
	case SignatureRetParam:
		return "RetParam"
	default:
		return "Unknown"
	}
}

// Flag is a bitset of method properties.
type Flag uint32

const (
	// FlagNone marks a plain method.
	FlagNone Flag = 0

	// FlagIsSignal marks a method that is emitted as a signal.
	FlagIsSignal Flag = 1 << 0

	// FlagIsGetter marks a property getter.
	FlagIsGetter Flag = 1 << 1

	// FlagIsSetter marks a property setter.
	FlagIsSetter Flag = 1 << 2

	// FlagLargeResultHint warns callers the result may be large.
	FlagLargeResultHint Flag = 1 << 3
)

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// DirAttribute selects which descriptor attributes "dir" renders.
type DirAttribute uint8

const (
	// DirAttrSignature includes the signature code.
	DirAttrSignature DirAttribute = 1 << 0

	// DirAttrFlags includes the flags bitset.
	DirAttrFlags DirAttribute = 1 << 1

	// DirAttrAccessGrant includes the access grant.
	DirAttrAccessGrant DirAttribute = 1 << 2

	// DirAttrDescription includes the description.
	DirAttrDescription DirAttribute = 1 << 3

	// DirAttrAll includes every attribute.
	DirAttrAll DirAttribute = 0xff
)

// LsAttribute selects what "ls" renders for each child.
type LsAttribute uint8

const (
	// LsAttrHasChildren renders [name, hasChildren] pairs instead of names.
	LsAttrHasChildren LsAttribute = 1 << 0
)

// Standard access grants.
const (
	AccessBrowse  = "bws"
	AccessRead    = "rd"
	AccessWrite   = "wr"
	AccessCommand = "cmd"
	AccessService = "srv"
)

// MetaMethod describes a method exposed by a node. Treat it as immutable
// once published by a processor.
type MetaMethod struct {
	// Name is the method name as used in requests.
	Name string

	// Signature is the call shape.
	Signature Signature

	// Flags are method properties.
	Flags Flag

	// AccessGrant is the access level required to call the method. It is
	// advertised only; this agent does not enforce it.
	AccessGrant string

	// Description is a human-readable description.
	Description string
}

// DirAttributes renders the descriptor for a "dir" response. A zero mask
// yields the bare name, otherwise a list of the name followed by the
// selected attributes in signature, flags, access grant, description order.
func (m *MetaMethod) DirAttributes(mask DirAttribute) any {
	if mask == 0 {
		return m.Name
	}
	out := []any{m.Name}
	if mask&DirAttrSignature != 0 {
		out = append(out, int64(m.Signature))
	}
	if mask&DirAttrFlags != 0 {
		out = append(out, int64(m.Flags))
	}
	if mask&DirAttrAccessGrant != 0 {
		out = append(out, m.AccessGrant)
	}
	if mask&DirAttrDescription != 0 {
		out = append(out, m.Description)
	}
	return out
}

// StandardMethods returns the introspection methods every node answers.
func StandardMethods() []*MetaMethod {
	return []*MetaMethod{
		{Name: "dir", Signature: SignatureRetParam, Flags: FlagNone, AccessGrant: AccessBrowse},
		{Name: "ls", Signature: SignatureRetParam, Flags: FlagNone, AccessGrant: AccessBrowse},
	}
}

// FindMethod returns the first method named name, or nil.
func FindMethod(methods []*MetaMethod, name string) *MetaMethod {
	for _, m := range methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}
