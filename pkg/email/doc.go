// Package email sends transactional email through Postmark, with a
// logging DevSender for local development.
//
//	sender, err := email.NewPostmarkSender(cfg)
//	err = sender.Send(ctx, email.Message{
//	    To:       "user@example.com",
//	    Subject:  "Form change detected",
//	    BodyHTML: "<p>...</p>",
//	    Tag:      "form-change",
//	})
package email
