package auth

import (
	"fmt"

	"subscription-tracker/internal/domain/users"
	"subscription-tracker/internal/infra/mail"
)

func verificationMessage(user users.User, link string) mail.Message {
	return mail.Message{
		To:      user.Email,
		Subject: "Verify Your Account",
		Body: fmt.Sprintf("Hi %s,\n\nClick the following link to verify your account:\n\n%s\n\nThe link is valid for 24 hours.",
			user.Name, link),
	}
}

func resetMessage(user users.User, link string) mail.Message {
	return mail.Message{
		To:      user.Email,
		Subject: "Reset Your Password",
		Body: fmt.Sprintf("Hi %s,\n\nSomeone asked to reset the password for this account. If it was you, open:\n\n%s\n\nThe link is valid for one hour. If you did not ask for this, you can ignore this email.",
			user.Name, link),
	}
}
