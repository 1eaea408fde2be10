package core

// TaskMeta describes where a task came from and what it is for.
type TaskMeta struct {
	Origin      string `json:"origin"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}
