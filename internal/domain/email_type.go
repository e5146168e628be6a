package domain

// EmailType identifies a template kind. Every send (campaign or single)
// is tagged with exactly one type.
type EmailType string

const (
	TypeSalesAnnouncement EmailType = "SALES_ANNOUNCEMENT"
	TypeSpecialOffer      EmailType = "SPECIAL_OFFER"
	TypeNewProduct        EmailType = "NEW_PRODUCT"
	TypeNewsletter        EmailType = "NEWSLETTER"

	TypeOrderConfirmation EmailType = "ORDER_CONFIRMATION"
	TypeOrderShipped      EmailType = "ORDER_SHIPPED"
	TypeOrderDelivered    EmailType = "ORDER_DELIVERED"
	TypePasswordReset     EmailType = "PASSWORD_RESET"
	TypeWelcome           EmailType = "WELCOME"

	TypeAdminAlert EmailType = "ADMIN_ALERT"
)

// EmailKind is the closed variant every EmailType belongs to.
type EmailKind string

const (
	KindTransactional EmailKind = "transactional"
	KindMarketing     EmailKind = "marketing"
	KindSystem        EmailKind = "system"
)

// Category groups email types under one admin enable flag and, for
// marketing, one per-recipient preference flag.
type Category string

const (
	CategoryNone       Category = ""
	CategorySales      Category = "sales"
	CategoryOffers     Category = "offers"
	CategoryNewProduct Category = "new_product"
	CategoryOrder      Category = "order"
)

// TypeInfo is one row of the email type table.
type TypeInfo struct {
	Kind     EmailKind
	Category Category
	// Critical types are still delivered while maintenance mode is on.
	Critical bool
	// RequiredData lists template data keys the renderer must receive.
	RequiredData []string
	// Subject is used when a single send does not supply one.
	Subject string
}

// emailTypes is the single place where email types are classified.
// Adding a type means adding a row here and a template.
var emailTypes = map[EmailType]TypeInfo{
	TypeSalesAnnouncement: {Kind: KindMarketing, Category: CategorySales, RequiredData: []string{"userName"}, Subject: "A sale just started"},
	TypeSpecialOffer:      {Kind: KindMarketing, Category: CategoryOffers, RequiredData: []string{"userName"}, Subject: "A special offer for you"},
	TypeNewsletter:        {Kind: KindMarketing, Category: CategoryOffers, RequiredData: []string{"userName"}, Subject: "Our latest news"},
	TypeNewProduct:        {Kind: KindMarketing, Category: CategoryNewProduct, RequiredData: []string{"userName"}, Subject: "Something new just arrived"},

	TypeOrderConfirmation: {Kind: KindTransactional, Category: CategoryOrder, Critical: true, RequiredData: []string{"userName", "orderNumber"}, Subject: "Your order is confirmed"},
	TypeOrderShipped:      {Kind: KindTransactional, Category: CategoryOrder, RequiredData: []string{"userName", "orderNumber"}, Subject: "Your order has shipped"},
	TypeOrderDelivered:    {Kind: KindTransactional, Category: CategoryOrder, RequiredData: []string{"userName", "orderNumber"}, Subject: "Your order was delivered"},
	TypePasswordReset:     {Kind: KindTransactional, Critical: true, RequiredData: []string{"userName", "resetUrl"}, Subject: "Reset your password"},
	TypeWelcome:           {Kind: KindTransactional, RequiredData: []string{"userName"}, Subject: "Welcome aboard"},

	TypeAdminAlert: {Kind: KindSystem, Critical: true, RequiredData: []string{"message"}, Subject: "Admin alert"},
}

// Info returns the table row for t. ok is false for unknown types.
func (t EmailType) Info() (TypeInfo, bool) {
	info, ok := emailTypes[t]
	return info, ok
}

// Valid reports whether t is a known email type.
func (t EmailType) Valid() bool {
	_, ok := emailTypes[t]
	return ok
}

// IsMarketing reports whether t is subject to marketing consent.
func (t EmailType) IsMarketing() bool {
	info, ok := emailTypes[t]
	return ok && info.Kind == KindMarketing
}

// DefaultSubject returns the subject line for t when none is supplied.
func (t EmailType) DefaultSubject() string {
	return emailTypes[t].Subject
}

// AllEmailTypes returns every known type in a stable order.
func AllEmailTypes() []EmailType {
	return []EmailType{
		TypeSalesAnnouncement, TypeSpecialOffer, TypeNewProduct, TypeNewsletter,
		TypeOrderConfirmation, TypeOrderShipped, TypeOrderDelivered, TypePasswordReset, TypeWelcome,
		TypeAdminAlert,
	}
}
