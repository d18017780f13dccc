package domain

// Container is a throwaway container started from a freshly built image.
type Container struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	HostPort string `json:"host_port"`
	State    string `json:"state"` // created, running, exited
}
