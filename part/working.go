package part

// Working references a production stage and the employee profile assigned to it.
type Working struct {
	Stage   string `json:"stage" bson:"stage"`
	Profile string `json:"profile" bson:"profile"`
}

func (w *Working) Assigned() bool {
	return w != nil && w.Stage != "" && w.Profile != ""
}
