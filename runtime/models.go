package runtime

import "encoding/json"

// TaskRequest asks the runtime to run a function in a worker process.
type TaskRequest struct {
	// Function is the name of the work function to run.
	Function string `json:"function"`

	// Input is passed to the work function as is.
	Input json.RawMessage `json:"input"`
}

// TaskResponse holds the output of a successful run.
type TaskResponse struct {
	Output json.RawMessage `json:"output"`
}
