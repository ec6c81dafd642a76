// Package notify envía la notificación de emisión al dueño del legado:
// el certificado quedó resguardado y esta es tu URL de verificación.
// Es opcional: sin SMTP configurado, Notifier es un no-op.
package notify

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/custodia/internal/observability/logger"
)

// Sender es la interfaz para enviar emails.
// Implementada por SMTPSender.
type Sender interface {
	// Send envía un email con contenido HTML y texto plano.
	Send(to string, subject string, htmlBody string, textBody string) error
}

// Notifier arma y despacha las notificaciones del producto.
type Notifier struct {
	sender  Sender
	product string
}

// New crea un Notifier. sender nil ⇒ no-op (dev sin SMTP).
func New(sender Sender, product string) *Notifier {
	if product == "" {
		product = "Custodia"
	}
	return &Notifier{sender: sender, product: product}
}

// Enabled indica si hay un sender real configurado.
func (n *Notifier) Enabled() bool { return n != nil && n.sender != nil }

// CertificateIssued notifica al dueño que su certificado fue emitido.
// Best-effort: el caller decide si un fallo de envío importa (acá solo
// se loguea; la emisión ya quedó registrada en el vault).
func (n *Notifier) CertificateIssued(ctx context.Context, to, serial, verifyURL string) {
	if !n.Enabled() || to == "" {
		return
	}

	subject := fmt.Sprintf("[%s] Certificado %s emitido", n.product, serial)
	text := fmt.Sprintf(
		"Tu certificado %s fue emitido y resguardado.\n\nVerificalo en: %s\n",
		serial, verifyURL,
	)
	html := fmt.Sprintf(
		`<p>Tu certificado <b>%s</b> fue emitido y resguardado.</p><p><a href="%s">Verificar certificado</a></p>`,
		serial, verifyURL,
	)

	if err := n.sender.Send(to, subject, html, text); err != nil {
		logger.From(ctx).Warn("issuance notification failed",
			logger.Serial(serial),
			logger.String("to", to),
			logger.Err(err),
		)
	}
}
