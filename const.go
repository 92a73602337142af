package wsengine

var (
	webSocketString        = []byte("websocket")
	upgradeString          = []byte("Upgrade")
	connectionString       = []byte("Connection")
	websocketKeyString     = []byte("Sec-WebSocket-Key")
	websocketVersionString = []byte("Sec-WebSocket-Version")
	websocketAcceptVersion = []byte("13")
	websocketAcceptString  = []byte("Sec-WebSocket-Accept")

	continueResponse = []byte("HTTP/1.1 100 Continue\r\n\r\n")
	http10String     = []byte("HTTP/1.0")
	http11String     = []byte("HTTP/1.1")
)

// Opcode is the 4-bit frame type of a WebSocket frame.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0

	OpText Opcode = 0x1

	OpBinary Opcode = 0x2

	OpClose Opcode = 0x8

	OpPing Opcode = 0x9

	OpPong Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "Continuation"
	case OpText:
		return "Text"
	case OpBinary:
		return "Binary"
	case OpClose:
		return "Close"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// IsControl reports whether o is a control opcode (CLOSE, PING, PONG).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// StatusCode is the close status carried in the payload of a CLOSE frame.
type StatusCode uint16

const (
	StatusNormalClosure StatusCode = 1000

	StatusGoingAway StatusCode = 1001

	StatusProtocolError StatusCode = 1002

	StatusUnsupportedData StatusCode = 1003

	StatusNoStatusReceived StatusCode = 1005

	StatusAbnormalClosure StatusCode = 1006

	StatusInvalidFramePayloadData StatusCode = 1007

	StatusPolicyViolation StatusCode = 1008

	StatusMessageTooBig StatusCode = 1009

	StatusMandatoryExtension StatusCode = 1010

	StatusInternalServerError StatusCode = 1011
)

func (s StatusCode) String() string {
	switch s {
	case StatusNormalClosure:
		return "NormalClosure"
	case StatusGoingAway:
		return "GoingAway"
	case StatusProtocolError:
		return "ProtocolError"
	case StatusUnsupportedData:
		return "UnsupportedData"
	case StatusNoStatusReceived:
		return "NoStatusReceived"
	case StatusAbnormalClosure:
		return "AbnormalClosure"
	case StatusInvalidFramePayloadData:
		return "InvalidFramePayloadData"
	case StatusPolicyViolation:
		return "PolicyViolation"
	case StatusMessageTooBig:
		return "MessageTooBig"
	case StatusMandatoryExtension:
		return "MandatoryExtension"
	case StatusInternalServerError:
		return "InternalServerError"
	default:
		return "Unknown"
	}
}
