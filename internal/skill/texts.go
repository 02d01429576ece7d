package skill

import "fmt"

// Spoken responses
const (
	textWelcomeBack       = "Welcome back. What are you doing?"
	textLaunchReprompt    = "Log something starting with 'I am...' or ask for help."
	textLogFailed         = "Sorry, there was an error logging your activity. Please try again."
	textMissingUtterance  = "I didn't catch what to log. Try saying something like, log that I'm taking my vitamins."
	textAlreadyEnabled    = "Hmm, I'm not sure what you're asking for. Let's try something else."
	textPermissionNeeded  = "To send you daily reports, I need permission to access your email address. I've sent a card to your Alexa app to grant this permission."
	textEmailEnabled      = "Great! I've set up daily log emails for you."
	textEmailSetupFailed  = "I'm sorry, there was an error setting up your email preference. Please try again later."
	textReportsStopped    = "I've stopped sending daily reports to your email. You can always ask me to start sending them again by saying 'send daily log reports to my email'."
	textReportsNotActive  = "Daily reports aren't turned on for you, so there's nothing to stop. Say 'use my email' if you'd like to get them."
	textStopReportsFailed = "Sorry, there was an error processing your request. Please try again later."
)

func textWelcome(skillName string) string {
	return fmt.Sprintf("Welcome to %s. Log anything by starting with 'Log that...' For example, you can say 'Open %s, and log that I am taking my vitamins'.", skillName, skillName)
}

func textLogged(utterance string) string {
	return "Got it! Here is what I logged: " + utterance
}

func textHelp(skillName string) string {
	return fmt.Sprintf("You can log your activity in %s by saying something like, I'm taking 650 of Tylenol now, or I'm applying the balm. What would you like to do?", skillName)
}

func textGoodbye(skillName string) string {
	return fmt.Sprintf("Thank you for using %s. Goodbye!", skillName)
}

func textCatchAll(skillName string) string {
	return fmt.Sprintf("Sorry, I had trouble doing what you asked. Please try again or ask for help in %s.", skillName)
}
