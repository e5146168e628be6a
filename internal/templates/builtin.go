package templates

import "github.com/ignite/notify-dispatch/internal/domain"

const layoutHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{ subject | default: "" | escape }}</title></head>
<body style="font-family:Arial,sans-serif;background:#f6f6f6;margin:0;padding:24px">
<table role="presentation" width="100%" style="max-width:600px;margin:0 auto;background:#ffffff;padding:24px">
<tr><td>
`

const layoutFoot = `
<hr style="border:none;border-top:1px solid #eee;margin:24px 0">
<p style="font-size:12px;color:#888">{% if unsubscribeUrl %}<a href="{{ unsubscribeUrl }}">Manage email preferences</a>{% endif %}</p>
</td></tr></table></body></html>`

var builtin = map[domain.EmailType]string{
	domain.TypeSalesAnnouncement: `<h1>{{ headline | default: "Our sale is on" | escape }}</h1>
<p>Hi {{ userName | escape }},</p>
<p>{{ message | default: "Save on your favourites for a limited time." | escape }}</p>
{% if ctaUrl %}<p><a href="{{ ctaUrl }}">{{ ctaText | default: "Shop now" | escape }}</a></p>{% endif %}`,

	domain.TypeSpecialOffer: `<h1>{{ headline | default: "A special offer for you" | escape }}</h1>
<p>Hi {{ userName | escape }},</p>
<p>{{ message | default: "" | escape }}</p>
{% if discountCode %}<p>Use code <strong>{{ discountCode | escape }}</strong>{% if expiresAt %} before {{ expiresAt | escape }}{% endif %}.</p>{% endif %}`,

	domain.TypeNewProduct: `<h1>{{ productName | default: "Something new just arrived" | escape }}</h1>
<p>Hi {{ userName | escape }},</p>
<p>{{ message | default: "" | escape }}</p>
{% if productUrl %}<p><a href="{{ productUrl }}">See it first</a></p>{% endif %}`,

	domain.TypeNewsletter: `<h1>{{ headline | default: "News from us" | escape }}</h1>
<p>Hi {{ userName | escape }},</p>
<div>{{ message | default: "" | escape }}</div>`,

	domain.TypeOrderConfirmation: `<h1>Thanks for your order</h1>
<p>Hi {{ userName | escape }},</p>
<p>We have received order <strong>#{{ orderNumber | escape }}</strong>.{% if total %} Total: {{ total | currency }}.{% endif %}</p>`,

	domain.TypeOrderShipped: `<h1>Your order is on its way</h1>
<p>Hi {{ userName | escape }},</p>
<p>Order <strong>#{{ orderNumber | escape }}</strong> has shipped.{% if trackingNumber %} Tracking number: {{ trackingNumber | escape }}.{% endif %}</p>`,

	domain.TypeOrderDelivered: `<h1>Your order was delivered</h1>
<p>Hi {{ userName | escape }},</p>
<p>Order <strong>#{{ orderNumber | escape }}</strong> has been delivered. Enjoy!</p>`,

	domain.TypePasswordReset: `<h1>Reset your password</h1>
<p>Hi {{ userName | escape }},</p>
<p><a href="{{ resetUrl }}">Choose a new password</a>. If you did not ask for this, ignore this email.</p>`,

	domain.TypeWelcome: `<h1>Welcome{% if userName %}, {{ userName | escape }}{% endif %}!</h1>
<p>Thanks for joining. You can change which emails you receive at any time from your account settings.</p>`,

	domain.TypeAdminAlert: `<h1>Admin alert</h1>
<pre>{{ message | escape }}</pre>`,
}
