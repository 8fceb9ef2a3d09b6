package utils

import "github.com/google/uuid"

func GenerateOrderID() string {
	return "ord_" + uuid.NewString()
}

func GenerateLeadID() string {
	return "lead_" + uuid.NewString()
}

func GenerateNotificationID() string {
	return "ntf_" + uuid.NewString()
}

func GenerateAuditID() string {
	return "aud_" + uuid.NewString()
}
