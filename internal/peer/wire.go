package peer

// Fixed tokens of the line-mode wire format.
const (
	DataPrefix        = "data: "
	InputPrefix       = "input: "
	NoEchoInputPrefix = "inputnp: "
	StatusOK          = "ok"
	StatusError       = "error"
)

// envelope is the JSON-mode reply for one command.
type envelope struct {
	Result  []string `json:"result"`
	Success bool     `json:"success"`
	Status  string   `json:"status"`
}
