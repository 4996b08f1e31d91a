package domain

// MacroResponse is a premade staff reply keyed by a short command word.
type MacroResponse struct {
	Key      string
	Response string
}
