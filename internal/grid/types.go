package grid

// JobPayload is the body submitted to the grid's async text-generation endpoint.
type JobPayload struct {
	Prompt         string    `json:"prompt"`
	Models         []string  `json:"models"`
	N              int       `json:"n"`
	TrustedWorkers bool      `json:"trusted_workers"`
	Params         JobParams `json:"params"`
}

// JobParams carries the generation parameters. The width/height/steps block
// is image-generation-era schema the grid tolerates on text jobs; workers
// ignore it but older grid versions reject payloads without it.
type JobParams struct {
	MaxContextLength int      `json:"max_context_length"`
	MaxLength        int      `json:"max_length"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	N                int      `json:"n"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	Steps            int      `json:"steps"`
	SamplerName      string   `json:"sampler_name"`
	CfgScale         float64  `json:"cfg_scale"`
	Tiling           bool     `json:"tiling"`
	ClipSkip         int      `json:"clip_skip"`
	PostProcessing   []string `json:"post_processing"`
	Karras           bool     `json:"karras"`
	HiresFix         bool     `json:"hires_fix"`
}

// submitResponse is the grid's reply to a job submission.
type submitResponse struct {
	ID string `json:"id"`
}

// JobStatus is the grid's reply to a status poll.
type JobStatus struct {
	Done        bool         `json:"done"`
	Generations []Generation `json:"generations"`
}

// Generation is one finished generation within a job.
type Generation struct {
	Text string `json:"text"`
}
