package transport

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/wire"
)

// ICMPv6 parse errors.
var (
	// ErrReservedType indicates a reserved ICMPv6 message type (0, 127, 255).
	ErrReservedType = errors.New("reserved ICMPv6 message type")

	// ErrUnknownType indicates an ICMPv6 message type outside the IANA table.
	ErrUnknownType = errors.New("unknown ICMPv6 message type")
)

// MessageType identifies an ICMPv6 message (RFC 4443 Section 2.1 and the
// IANA ICMPv6 parameters registry). Values match the wire encoding except
// for TypePrivateExperimentation, which collapses the four experimental
// code points {100, 101, 200, 201} into one tag.
type MessageType uint8

// Accepted ICMPv6 message types.
const (
	// Error messages (RFC 4443 Section 2.1).
	TypeDestinationUnreachable MessageType = 1
	TypePacketTooBig           MessageType = 2
	TypeTimeExceeded           MessageType = 3
	TypeParameterProblem       MessageType = 4

	// Informational messages (RFC 4443 Section 2.1).
	TypeEchoRequest MessageType = 128
	TypeEchoReply   MessageType = 129

	// MLD and Router/Neighbor Discovery (RFC 2710, RFC 4861).
	TypeMulticastListenerQuery  MessageType = 130
	TypeMulticastListenerReport MessageType = 131
	TypeMulticastListenerDone   MessageType = 132
	TypeRouterSolicitation      MessageType = 133
	TypeRouterAdvertisement     MessageType = 134
	TypeNeighborSolicitation    MessageType = 135
	TypeNeighborAdvertisement   MessageType = 136
	TypeRedirect                MessageType = 137
	TypeRouterRenumbering       MessageType = 138

	// Node information and inverse discovery.
	TypeNodeInformationQuery    MessageType = 139
	TypeNodeInformationResponse MessageType = 140
	TypeInverseNDSolicitation   MessageType = 141
	TypeInverseNDAdvertisement  MessageType = 142
	TypeMLDv2Report             MessageType = 143

	// Mobility and certification path.
	TypeHomeAgentDiscoveryRequest MessageType = 144
	TypeHomeAgentDiscoveryReply   MessageType = 145
	TypeMobilePrefixSolicitation  MessageType = 146
	TypeMobilePrefixAdvertisement MessageType = 147
	TypeCertPathSolicitation      MessageType = 148
	TypeCertPathAdvertisement     MessageType = 149
	TypeExperimentalMobility      MessageType = 150

	// Multicast routers through extended echo.
	TypeMulticastRouterAdvertisement MessageType = 151
	TypeMulticastRouterSolicitation  MessageType = 152
	TypeMulticastRouterTermination   MessageType = 153
	TypeFMIPv6                       MessageType = 154
	TypeRPLControl                   MessageType = 155
	TypeILNPv6LocatorUpdate          MessageType = 156
	TypeDuplicateAddressRequest      MessageType = 157
	TypeDuplicateAddressConfirmation MessageType = 158
	TypeMPLControl                   MessageType = 159
	TypeExtendedEchoRequest          MessageType = 160
	TypeExtendedEchoReply            MessageType = 161

	// TypePrivateExperimentation is the collapsed tag for the IANA
	// private-experimentation code points 100, 101, 200, and 201.
	TypePrivateExperimentation MessageType = 100
)

// messageTypeNames maps accepted types to their IANA names.
var messageTypeNames = map[MessageType]string{
	TypeDestinationUnreachable:       "Destination Unreachable",
	TypePacketTooBig:                 "Packet Too Big",
	TypeTimeExceeded:                 "Time Exceeded",
	TypeParameterProblem:             "Parameter Problem",
	TypeEchoRequest:                  "Echo Request",
	TypeEchoReply:                    "Echo Reply",
	TypeMulticastListenerQuery:       "Multicast Listener Query",
	TypeMulticastListenerReport:      "Multicast Listener Report",
	TypeMulticastListenerDone:        "Multicast Listener Done",
	TypeRouterSolicitation:           "Router Solicitation",
	TypeRouterAdvertisement:          "Router Advertisement",
	TypeNeighborSolicitation:         "Neighbor Solicitation",
	TypeNeighborAdvertisement:        "Neighbor Advertisement",
	TypeRedirect:                     "Redirect Message",
	TypeRouterRenumbering:            "Router Renumbering",
	TypeNodeInformationQuery:         "ICMP Node Information Query",
	TypeNodeInformationResponse:      "ICMP Node Information Response",
	TypeInverseNDSolicitation:        "Inverse Neighbor Discovery Solicitation",
	TypeInverseNDAdvertisement:       "Inverse Neighbor Discovery Advertisement",
	TypeMLDv2Report:                  "Version 2 Multicast Listener Report",
	TypeHomeAgentDiscoveryRequest:    "Home Agent Address Discovery Request",
	TypeHomeAgentDiscoveryReply:      "Home Agent Address Discovery Reply",
	TypeMobilePrefixSolicitation:     "Mobile Prefix Solicitation",
	TypeMobilePrefixAdvertisement:    "Mobile Prefix Advertisement",
	TypeCertPathSolicitation:         "Certification Path Solicitation",
	TypeCertPathAdvertisement:        "Certification Path Advertisement",
	TypeExperimentalMobility:         "Experimental Mobility Protocols",
	TypeMulticastRouterAdvertisement: "Multicast Router Advertisement",
	TypeMulticastRouterSolicitation:  "Multicast Router Solicitation",
	TypeMulticastRouterTermination:   "Multicast Router Termination",
	TypeFMIPv6:                       "FMIPv6 Messages",
	TypeRPLControl:                   "RPL Control Message",
	TypeILNPv6LocatorUpdate:          "ILNPv6 Locator Update Message",
	TypeDuplicateAddressRequest:      "Duplicate Address Request",
	TypeDuplicateAddressConfirmation: "Duplicate Address Confirmation",
	TypeMPLControl:                   "MPL Control Message",
	TypeExtendedEchoRequest:          "Extended Echo Request",
	TypeExtendedEchoReply:            "Extended Echo Reply",
	TypePrivateExperimentation:       "Private Experimentation",
}

// String returns the IANA name for the message type.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// ParseMessageType maps a wire type octet to a MessageType. The reserved
// values 0, 127, and 255 fail the parse, as do values outside the IANA
// table; 100, 101, 200, and 201 collapse to TypePrivateExperimentation.
func ParseMessageType(b uint8) (MessageType, error) {
	switch b {
	case 0, 127, 255:
		return 0, fmt.Errorf("type %d: %w", b, ErrReservedType)
	case 100, 101, 200, 201:
		return TypePrivateExperimentation, nil
	}
	t := MessageType(b)
	if _, ok := messageTypeNames[t]; !ok {
		return 0, fmt.Errorf("type %d: %w", b, ErrUnknownType)
	}
	return t, nil
}

// ICMPv6Message is a decoded ICMPv6 header (RFC 4443 Section 2.1). The
// message body beyond the 4-byte header is typed but not decoded in this
// subset, and there is no egress encoding.
type ICMPv6Message struct {
	Type     MessageType
	Code     uint8
	Checksum uint16
}

// ParseICMPv6 decodes the ICMPv6 header from r and discards the body.
func ParseICMPv6(r *wire.Reader) (*ICMPv6Message, error) {
	typeByte, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading message type: %w", err)
	}
	code, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}
	csum, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}

	t, err := ParseMessageType(typeByte)
	if err != nil {
		return nil, fmt.Errorf("resolving message type: %w", err)
	}

	// Body is typed only; discard the remaining octets.
	_ = r.Rest()

	return &ICMPv6Message{Type: t, Code: code, Checksum: csum}, nil
}

// ProtocolNumber returns the IANA protocol number for ICMPv6.
func (m *ICMPv6Message) ProtocolNumber() uint8 { return ProtoNumICMPv6 }

// WireLen is unsupported: the body is discarded on parse, so the original
// length cannot be reconstructed.
func (m *ICMPv6Message) WireLen() (uint16, error) {
	return 0, fmt.Errorf("ICMPv6: %w", ErrSerializeUnsupported)
}

// Serialize is not defined for ICMPv6 in this subset.
func (m *ICMPv6Message) Serialize(_, _ netip.Addr) ([]byte, error) {
	return nil, fmt.Errorf("ICMPv6: %w", ErrSerializeUnsupported)
}

// ShortString renders the message type and code.
func (m *ICMPv6Message) ShortString() string {
	return fmt.Sprintf("ICMPv6 %s (code %d)", m.Type, m.Code)
}
