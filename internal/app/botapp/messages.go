package botapp

import (
	"fmt"
	"time"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
)

const (
	welcomeText = "Welcome! Use the buttons below to check your plan or get content."

	joinFirstText       = "Please join our channel first, then try again."
	oracleDownText      = "Couldn't verify your channel membership right now. Please try again in a minute."
	noItemsText         = "No new items available for you right now. Check back later."
	deliveryFailedText  = "Something went wrong while sending your item. Please try again."
	buyPitchText        = "Want more items per day? Upgrade to the paid plan."
	upgradeButtonLabel  = "Upgrade plan"
	payButtonLabel      = "Pay via UPI"
	paymentPendingText  = "Complete the payment using the button above. Your plan activates automatically once the payment is confirmed."
	paymentFailedText   = "Payment failed. Your plan was not changed."
	paymentExpiredText  = "Payment window expired. Please start a new upgrade if you still want the paid plan."
	paymentSuccessText  = "Payment successful! Your paid plan is now active."
	somethingWrongText  = "Something went wrong. Please try again later."
)

func renderQuotaExceeded(limit int, resetIn time.Duration) string {
	return fmt.Sprintf(
		"Daily limit of %d reached. Your quota resets in %s.",
		limit, formatDuration(resetIn),
	)
}

func renderStatus(snap entsvc.Snapshot) string {
	planLine := "You don't have an active plan."
	if snap.Plan == enums.PlanPaid {
		planLine = "Paid plan active."
		if snap.PlanExpiresAt != nil {
			planLine = fmt.Sprintf("Paid plan active until %s.", snap.PlanExpiresAt.Format("2006-01-02 15:04 MST"))
		}
	}
	return fmt.Sprintf(
		"Daily items used: %d/%d\nQuota resets in %s.\n\n%s",
		snap.QuotaUsed, snap.Limit, formatDuration(snap.ResetIn), planLine,
	)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h <= 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
