// Package datanode implements the Value Marshaller (C1), Tree Assembler
// (C3) and With-Defaults Filter (C4). Values are represented as a tagged
// union (Kind + one populated field) rather than an interface hierarchy,
// since YANG's leaf types are a closed, enumerable set (RFC 7950 §9).
package datanode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"

	"github.com/finlaygreen/netconfd/mgmterror"
)

// Kind identifies which field of a Value is populated.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindUint
	KindBool
	KindDecimal64
	KindEnum
	KindIdentityref
	KindBinary
	KindBits
	KindEmpty
	KindInstanceIdentifier
	// KindContainer marks a container (with or without presence) and
	// KindListEntry marks one list entry: neither carries a lexical
	// value of its own, but each still needs its own set_item(P, —) call
	// per spec §4.4 so a presence container or an otherwise-childless
	// list entry is not silently skipped (spec §8 scenario S2).
	KindContainer
	KindListEntry
)

func isMarker(k Kind) bool { return k == KindContainer || k == KindListEntry }

// Value is a single YANG leaf value. Exactly one of Str/Int/Uint/Bool is
// meaningful, selected by Kind; Str also carries the canonical lexical
// form for Decimal64/Enum/Identityref/Binary/Bits/InstanceIdentifier,
// whose semantics do not need a dedicated Go representation here.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Uint uint64
	Bool bool
}

func String(s string) Value                 { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value                     { return Value{Kind: KindInt, Int: i} }
func Uint(u uint64) Value                   { return Value{Kind: KindUint, Uint: u} }
func Bool(b bool) Value                     { return Value{Kind: KindBool, Bool: b} }
func Enum(s string) Value                   { return Value{Kind: KindEnum, Str: s} }
func Identityref(s string) Value            { return Value{Kind: KindIdentityref, Str: s} }
func Decimal64(s string) Value              { return Value{Kind: KindDecimal64, Str: s} }
func Binary(s string) Value                 { return Value{Kind: KindBinary, Str: s} }
func Bits(s string) Value                   { return Value{Kind: KindBits, Str: s} }
func Empty() Value                          { return Value{Kind: KindEmpty} }
func InstanceIdentifier(s string) Value     { return Value{Kind: KindInstanceIdentifier, Str: s} }
func ContainerMarker() Value                { return Value{Kind: KindContainer} }
func ListEntryMarker() Value                { return Value{Kind: KindListEntry} }

// Lexical renders v in its RFC 7950 canonical lexical representation, the
// form used both on the wire (XML character data) and for content-match
// comparisons in filter.Selector.ContentMatch.
func (v Value) Lexical() string {
	switch v.Kind {
	case KindString, KindEnum, KindIdentityref, KindDecimal64, KindBinary, KindBits, KindInstanceIdentifier:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindEmpty:
		return ""
	default:
		return ""
	}
}

func (v Value) Equal(o Value) bool {
	return v.Lexical() == o.Lexical()
}

// MarshalLeaf converts XML character data into a typed Value, per the
// YangType.Kind carried by entry (grounded in the same switch-on-Kind
// pattern the gNMI/NETCONF adapter reference uses for leaf decoding).
func MarshalLeaf(entry *yang.Entry, text string) (Value, error) {
	text = strings.TrimSpace(text)
	if entry == nil || entry.Type == nil {
		return String(text), nil
	}
	switch entry.Type.Kind {
	case yang.Ystring:
		return String(text), nil
	case yang.Ybool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, mgmterror.NewInvalidValue(fmt.Sprintf("%q is not a valid boolean", text))
		}
		return Bool(b), nil
	case yang.Yint8, yang.Yint16, yang.Yint32, yang.Yint64:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, mgmterror.NewInvalidValue(fmt.Sprintf("%q is not a valid integer", text))
		}
		return Int(i), nil
	case yang.Yuint8, yang.Yuint16, yang.Yuint32, yang.Yuint64:
		u, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Value{}, mgmterror.NewInvalidValue(fmt.Sprintf("%q is not a valid unsigned integer", text))
		}
		return Uint(u), nil
	case yang.Yenum:
		if !validEnum(entry.Type, text) {
			return Value{}, mgmterror.NewInvalidValue(fmt.Sprintf("%q is not a valid enum value", text))
		}
		return Enum(text), nil
	case yang.Yidentityref:
		return Identityref(text), nil
	case yang.Ydecimal64:
		return Decimal64(text), nil
	case yang.Ybinary:
		return Binary(text), nil
	case yang.Ybits:
		return Bits(text), nil
	case yang.Yempty:
		return Empty(), nil
	case yang.Yinstanceid:
		return InstanceIdentifier(text), nil
	case yang.Yunion:
		return marshalUnion(entry.Type, text)
	default:
		return String(text), nil
	}
}

func marshalUnion(t *yang.YangType, text string) (Value, error) {
	for _, sub := range t.Type {
		fake := &yang.Entry{Type: sub}
		if v, err := MarshalLeaf(fake, text); err == nil {
			return v, nil
		}
	}
	return Value{}, mgmterror.NewInvalidValue(fmt.Sprintf("%q does not match any member type of the union", text))
}

func validEnum(t *yang.YangType, text string) bool {
	if t.Enum == nil {
		return true
	}
	for _, name := range t.Enum.NameMap() {
		if name == text {
			return true
		}
	}
	return false
}

// UnmarshalLeaf converts a Value back to the XML character-data text that
// should appear in an rpc-reply. Only enumeration values are validated
// against entry's type; other types are returned unchecked.
func UnmarshalLeaf(entry *yang.Entry, v Value) (string, error) {
	if entry != nil && entry.Type != nil && entry.Type.Kind == yang.Yenum {
		if !validEnum(entry.Type, v.Lexical()) {
			return "", mgmterror.NewInvalidValue(fmt.Sprintf("%q is not a valid enum value", v.Lexical()))
		}
	}
	return v.Lexical(), nil
}
