package resilience

// FeedbackMessage returns a user-friendly description of an error kind,
// suitable for surfacing while a retry is in flight or after one failed.
func FeedbackMessage(kind Kind, isRetry bool) string {
	prefix := ""
	if isRetry {
		prefix = "Retrying... "
	}

	switch kind {
	case KindAPI:
		return prefix + "Having trouble connecting to the AI service. Please wait..."
	case KindRateLimit:
		return prefix + "Too many requests. Taking a brief pause..."
	case KindNetwork:
		return prefix + "Network connectivity issue. Attempting to reconnect..."
	case KindTimeout:
		return prefix + "Request timed out. Trying again..."
	case KindValidation:
		return "There was an issue with your request format. Please try rephrasing."
	case KindUnknown:
		return prefix + "Unexpected error occurred. Working to resolve it..."
	default:
		return prefix + "An error occurred. Please try again."
	}
}

// RecoveryMessage returns the message shown after a successful recovery.
func RecoveryMessage() string {
	return "Connection restored. Continuing with your request..."
}

// FallbackMessage returns the message shown when fallback behavior is in
// use.
func FallbackMessage() string {
	return "Using alternative approach to help you..."
}
