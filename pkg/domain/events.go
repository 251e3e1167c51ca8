package domain

// Event names exchanged with clients. Requests carry the plain name, responses
// append "_response"; pushes are sent to every connected client.
const (
	EventWelcome        = "welcome"
	EventCurrentProgram = "current_program"
	EventShowDialog     = "show_dialog"
	EventDialogClosed   = "dialog_closed"
	EventLogLine        = "log_line"
	EventCurrentSerial  = "current_serial"
	EventCurrentVideo   = "current_video"
	EventProtocolError  = "protocol_error"
	EventVideoFrame     = "video_frame"

	EventGetPrograms       = "get_programs"
	EventStartProgram      = "start_program"
	EventStopProgram       = "stop_program"
	EventUpdateOptions     = "update_options"
	EventReloadPrograms    = "reload_programs"
	EventGetRunningProgram = "get_running_program"
	EventConnectSerial     = "connect_serial"
	EventDisconnectSerial  = "disconnect_serial"
	EventAllSerials        = "all_serials"
	EventConnectVideo      = "connect_video"
	EventDisconnectVideo   = "disconnect_video"
	EventAllVideo          = "all_video"
	EventPressButton       = "press_button"
	EventMoveJoystick      = "move_joystick"
)

// ResponseEvent returns the acknowledgment name for a request event.
func ResponseEvent(request string) string {
	return request + "_response"
}
