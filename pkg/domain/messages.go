package domain

// ResultMessage acknowledges a mutating request.
type ResultMessage struct {
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
}

// Success is the positive acknowledgment.
func Success() ResultMessage {
	return ResultMessage{Success: true}
}

// Failure builds a negative acknowledgment from err.
func Failure(err error) ResultMessage {
	return ResultMessage{
		Success:      false,
		ErrorMessage: err.Error(),
		ErrorKind:    Kind(err),
	}
}

// StartProgramMessage requests a program start.
type StartProgramMessage struct {
	ProgramName  string         `json:"program_name"`
	OptionValues map[string]any `json:"option_values"`
}

// UpdateOptionsMessage changes option values of the running program.
type UpdateOptionsMessage struct {
	OptionValues map[string]any `json:"option_values"`
}

// CurrentProgramMessage reports the running program, or nulls when idle.
type CurrentProgramMessage struct {
	Metadata      *ProgramMetadata `json:"metadata"`
	OptionValues  map[string]any   `json:"option_values"`
	CurrentDialog *Dialog          `json:"current_dialog"`
}

// ShowDialogMessage pushes a newly pending dialog.
type ShowDialogMessage struct {
	Dialog Dialog `json:"dialog"`
}

// DialogClosedMessage carries the operator's answer. Clients send it to answer;
// the server pushes it when the pending dialog is cleared.
type DialogClosedMessage struct {
	Button string `json:"button"`
}

// JoystickMessage moves one stick using polar coordinates.
type JoystickMessage struct {
	Joystick Stick   `json:"joystick"`
	Angle    float64 `json:"angle"`
	Radius   float64 `json:"radius"`
}

// WelcomeMessage is the full picture sent to a newly connected client.
type WelcomeMessage struct {
	AvailablePrograms     []ProgramMetadata  `json:"available_programs"`
	CurrentProgramName    *string            `json:"current_program_name"`
	CurrentProgramOptions map[string]any     `json:"current_program_options"`
	RecentProgramLogs     []string           `json:"recent_program_logs"`
	CurrentVideo          *CameraDescriptor  `json:"current_video"`
	AvailableVideo        []CameraDescriptor `json:"available_video"`
	CurrentSerial         *string            `json:"current_serial"`
	AvailableSerial       []string           `json:"available_serial"`
	CurrentDialog         *Dialog            `json:"current_dialog"`
}
