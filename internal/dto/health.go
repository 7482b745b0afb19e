package dto

// HealthResponse is served by /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Camera CameraHealth `json:"camera"`
	Server ServerHealth `json:"server"`
	Motion MotionHealth `json:"motion"`
}

type CameraHealth struct {
	Ready      bool   `json:"ready"`
	Resolution string `json:"resolution"`
	Framerate  int    `json:"framerate"`
}

type ServerHealth struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MotionHealth struct {
	Enabled bool `json:"enabled"`
}
