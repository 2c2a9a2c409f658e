package acceptor

import (
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/cryptobyte"
)

const (
	recordTypeHandshake = 0x16
	msgTypeClientHello  = 0x01

	// RFC 8446 Section 5.1: records carry at most 2^14 bytes of payload.
	maxRecordLength = 16384

	// Upper bound on an assembled ClientHello spanning multiple records.
	maxHandshakeLength = 1 << 17

	extensionServerName = 0
	extensionALPN       = 16
)

// ClientHello is a read-only snapshot of the fields the acceptor inspects
// before deciding which server configuration completes the handshake. It is
// only valid during classification and is not retained afterwards.
type ClientHello struct {
	// ServerName is the SNI host name, empty when the client sent none.
	ServerName string

	// ALPNProtos lists the application protocols offered by the client, in
	// the client's preference order.
	ALPNProtos []string
}

// IsChallenge reports whether the hello is an ACME tls-alpn-01 validation
// probe. Classification is a pure function of the ALPN protocol list.
func (h *ClientHello) IsChallenge() bool {
	return slices.Contains(h.ALPNProtos, acme.ALPNProto)
}

// peekClientHello reads TLS records from conn until a complete ClientHello
// handshake message has been assembled, and returns the parsed hello along
// with every byte consumed so the handshake can be replayed to crypto/tls.
func peekClientHello(conn io.Reader) (*ClientHello, []byte, error) {
	var recorded []byte

	readRecord := func() ([]byte, error) {
		var hdr [5]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return nil, err
		}
		if hdr[0] != recordTypeHandshake {
			return nil, fmt.Errorf("%w: record type 0x%02x", ErrNotClientHello, hdr[0])
		}
		length := int(hdr[3])<<8 | int(hdr[4])
		if length > maxRecordLength {
			return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, length)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return nil, err
		}
		recorded = append(recorded, hdr[:]...)
		recorded = append(recorded, payload...)
		return payload, nil
	}

	msg, err := readRecord()
	if err != nil {
		return nil, nil, err
	}

	// The handshake header (type + uint24 length) may itself be split
	// across records, as may the message body.
	for len(msg) < 4 {
		rec, err := readRecord()
		if err != nil {
			return nil, nil, err
		}
		msg = append(msg, rec...)
	}
	if msg[0] != msgTypeClientHello {
		return nil, nil, fmt.Errorf("%w: handshake message type 0x%02x", ErrNotClientHello, msg[0])
	}
	total := 4 + (int(msg[1])<<16 | int(msg[2])<<8 | int(msg[3]))
	if total > maxHandshakeLength {
		return nil, nil, fmt.Errorf("%w: handshake message of %d bytes", ErrRecordTooLarge, total)
	}
	for len(msg) < total {
		rec, err := readRecord()
		if err != nil {
			return nil, nil, err
		}
		msg = append(msg, rec...)
	}

	hello, err := parseClientHello(msg[4:total])
	if err != nil {
		return nil, nil, err
	}
	return hello, recorded, nil
}

// parseClientHello extracts the SNI and ALPN extensions from the body of a
// ClientHello handshake message (RFC 8446 Section 4.1.2, without the
// four-byte handshake header).
func parseClientHello(body []byte) (*ClientHello, error) {
	hello := new(ClientHello)

	s := cryptobyte.String(body)
	var legacyVersion uint16
	var random []byte
	if !s.ReadUint16(&legacyVersion) || !s.ReadBytes(&random, 32) {
		return nil, fmt.Errorf("%w: version or random", ErrMalformedClientHello)
	}
	var skip cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&skip) { // legacy_session_id
		return nil, fmt.Errorf("%w: legacy_session_id", ErrMalformedClientHello)
	}
	if !s.ReadUint16LengthPrefixed(&skip) { // cipher_suites
		return nil, fmt.Errorf("%w: cipher_suites", ErrMalformedClientHello)
	}
	if !s.ReadUint8LengthPrefixed(&skip) { // legacy_compression_methods
		return nil, fmt.Errorf("%w: legacy_compression_methods", ErrMalformedClientHello)
	}
	if s.Empty() {
		// Extensions are optional pre-1.3; no SNI, no ALPN.
		return hello, nil
	}

	var extensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&extensions) {
		return nil, fmt.Errorf("%w: extensions", ErrMalformedClientHello)
	}
	for !extensions.Empty() {
		var extType uint16
		var data cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&data) {
			return nil, fmt.Errorf("%w: extension header", ErrMalformedClientHello)
		}

		switch extType {
		case extensionServerName:
			// RFC 6066 Section 3.
			var serverNameList cryptobyte.String
			if !data.ReadUint16LengthPrefixed(&serverNameList) {
				return nil, fmt.Errorf("%w: server_name list", ErrMalformedClientHello)
			}
			for !serverNameList.Empty() {
				var nameType uint8
				var hostName cryptobyte.String
				if !serverNameList.ReadUint8(&nameType) || !serverNameList.ReadUint16LengthPrefixed(&hostName) {
					return nil, fmt.Errorf("%w: server_name entry", ErrMalformedClientHello)
				}
				if nameType == 0 {
					hello.ServerName = string(hostName)
				}
			}

		case extensionALPN:
			// RFC 7301 Section 3.1.
			var protocolNameList cryptobyte.String
			if !data.ReadUint16LengthPrefixed(&protocolNameList) {
				return nil, fmt.Errorf("%w: alpn protocol list", ErrMalformedClientHello)
			}
			for !protocolNameList.Empty() {
				var protocolName cryptobyte.String
				if !protocolNameList.ReadUint8LengthPrefixed(&protocolName) {
					return nil, fmt.Errorf("%w: alpn protocol name", ErrMalformedClientHello)
				}
				hello.ALPNProtos = append(hello.ALPNProtos, string(protocolName))
			}
		}
	}

	return hello, nil
}
