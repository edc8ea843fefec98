package notify

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"text/template"
)

// Mailer composes and sends the localized order-confirmation email. The SMTP
// endpoint is an external collaborator; only compose+send glue lives here.
type Mailer struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type Item struct {
	Name      string
	Qty       int
	UnitPrice string
}

type Confirmation struct {
	CustomerName  string
	OrderIDs      []string
	Items         []Item
	Total         string
	DeliveryCost  string
	Address       string
	PaymentMethod string
}

var subjects = map[string]string{
	"ro": "Confirmarea comenzii",
	"ru": "Подтверждение заказа",
}

func mustTmpl(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{"join": strings.Join}).Parse(text))
}

var bodies = map[string]*template.Template{
	"ro": mustTmpl("ro",
		`Bună ziua, {{.CustomerName}},

Comanda dumneavoastră a fost înregistrată ({{join .OrderIDs ", "}}).

Produse:
{{range .Items}}  - {{.Name}} x {{.Qty}} - {{.UnitPrice}} MDL
{{end}}Livrare: {{.DeliveryCost}} MDL
Total: {{.Total}} MDL
Adresa: {{.Address}}
Plata: {{.PaymentMethod}}

Vă mulțumim pentru comandă!
`),
	"ru": mustTmpl("ru",
		`Здравствуйте, {{.CustomerName}},

Ваш заказ зарегистрирован ({{join .OrderIDs ", "}}).

Товары:
{{range .Items}}  - {{.Name}} x {{.Qty}} - {{.UnitPrice}} MDL
{{end}}Доставка: {{.DeliveryCost}} MDL
Итого: {{.Total}} MDL
Адрес: {{.Address}}
Оплата: {{.PaymentMethod}}

Спасибо за ваш заказ!
`),
}

// Render produces the localized subject and body. Unknown locales fall back
// to Romanian.
func Render(locale string, c Confirmation) (subject, body string, err error) {
	if _, ok := subjects[locale]; !ok {
		locale = "ro"
	}
	var sb strings.Builder
	if err := bodies[locale].Execute(&sb, c); err != nil {
		return "", "", fmt.Errorf("render confirmation: %w", err)
	}
	return subjects[locale], sb.String(), nil
}

func (m *Mailer) SendConfirmation(to, locale string, c Confirmation) error {
	subject, body, err := Render(locale, c)
	if err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	return smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, []byte(msg))
}
