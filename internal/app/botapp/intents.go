package botapp

// Intent is the closed set of actions a user can express through the bot.
// Button labels and callback payloads are decoded here, at the transport
// boundary, and only the enum travels further.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentStart
	IntentStatus
	IntentGetContent
	IntentBuy
)

const (
	buttonStatus     = "Plan Status"
	buttonGetContent = "Get Video"

	callbackUpgrade = "plan:upgrade"
)

var menuButtons = []string{buttonStatus, buttonGetContent}

func decodeCommand(command string) Intent {
	switch command {
	case "start":
		return IntentStart
	case "status":
		return IntentStatus
	case "get":
		return IntentGetContent
	case "buy":
		return IntentBuy
	}
	return IntentUnknown
}

func decodeText(text string) Intent {
	switch text {
	case buttonStatus:
		return IntentStatus
	case buttonGetContent:
		return IntentGetContent
	}
	return IntentUnknown
}

func decodeCallback(data string) Intent {
	if data == callbackUpgrade {
		return IntentBuy
	}
	return IntentUnknown
}
