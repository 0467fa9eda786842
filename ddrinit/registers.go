package ddrinit

// Register map of the controller's configuration bus.
const (
	RegPhaseCommand   uint32 = 0x000
	RegCommandTrigger uint32 = 0x100
	RegCommandOpcode  uint32 = 0x104
	RegCommandAddress uint32 = 0x108
	RegCommandBank    uint32 = 0x10C
	RegControl        uint32 = 0x110
)

// Bits of RegControl.
const (
	ControlResetRelease uint32 = 1 << 0
	ControlClockEnable  uint32 = 1 << 1
)

// RegisterName returns a readable name of a configuration register.
func RegisterName(address uint32) string {
	switch address {
	case RegPhaseCommand:
		return "PHASE_COMMAND"
	case RegCommandTrigger:
		return "COMMAND_TRIGGER"
	case RegCommandOpcode:
		return "COMMAND_OPCODE"
	case RegCommandAddress:
		return "COMMAND_ADDRESS"
	case RegCommandBank:
		return "COMMAND_BANK"
	case RegControl:
		return "CONTROL"
	default:
		return "UNMAPPED"
	}
}
