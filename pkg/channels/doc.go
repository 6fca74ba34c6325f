// Package channels provides the concrete delivery mediums: email via
// Postmark, Slack and Microsoft Teams via incoming webhooks, and generic
// signed webhooks for customer endpoints.
//
// Each sender implements delivery.ChannelSender. The Registry routes a
// notification to the sender registered for its channel, so a delivery
// tracker sees one uniform sender:
//
//	reg := channels.NewRegistry()
//	reg.Register(notification.ChannelEmail, emailSender)
//	reg.Register(notification.ChannelSlack, slackSender)
//	tracker, err := delivery.NewTracker(store, reg, retryCfg)
//
// For Slack, Teams, and webhook channels the notification's Recipient
// field carries the destination URL.
package channels
