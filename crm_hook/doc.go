// Package crmhook is a chatflow extension that turns finished
// conversations into CRM leads.
//
// Every completed conversation produces a lead carrying the extracted
// name, mobile, and email, CRM-mapped custom fields, and the full
// question/answer transcript, pushed through the [Sink] interface.
// Abandoned conversations can optionally produce partial leads when a
// mobile number was captured before the thread went quiet.
//
// # Usage
//
//	crmhook.New(crmhook.SinkFunc(func(ctx context.Context, lead *crmhook.Lead) error {
//	    return crmClient.Leads.Create(ctx, lead.TenantID, toCreateRequest(lead))
//	}))
//
// # Partial leads
//
//	crmhook.New(sink,
//	    crmhook.WithSource("whatsapp"),
//	    crmhook.WithPartialLeads(),
//	)
package crmhook
