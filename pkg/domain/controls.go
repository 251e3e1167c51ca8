package domain

// Button names a console button as clients refer to it.
type Button string

const (
	ButtonA       Button = "A"
	ButtonB       Button = "B"
	ButtonX       Button = "X"
	ButtonY       Button = "Y"
	ButtonHome    Button = "Home"
	ButtonMinus   Button = "Minus"
	ButtonPlus    Button = "Plus"
	ButtonCapture Button = "Capture"
	ButtonL       Button = "L"
	ButtonR       Button = "R"
	ButtonZL      Button = "ZL"
	ButtonZR      Button = "ZR"
	ButtonLeft    Button = "Left"
	ButtonRight   Button = "Right"
	ButtonUp      Button = "Up"
	ButtonDown    Button = "Down"
)

// Stick selects one of the two analog sticks.
type Stick string

const (
	StickLeft  Stick = "left"
	StickRight Stick = "right"
)

// CameraDescriptor identifies a video source.
type CameraDescriptor struct {
	Name       string `json:"name"`
	Identifier any    `json:"identifier"`
}
