package flow

import (
	"fmt"
	"strings"

	"github.com/mariahq/maria/internal/catalog"
)

// Outbound message texts. The bot speaks Chilean Spanish; the question order
// is fixed and the numbering matches it.

const (
	promptWelcome = "Hola! Soy MarIA, tu asistente virtual que te va a apoyar con la gestión de tu crédito hipotecario. Lo primero que vamos a hacer es contestar unas preguntas."

	promptAskIdentifier = "1. Me puedes confirmar tu RUT?"
	promptAskName       = "No encontré un registro con ese RUT. Me puedes indicar tu nombre completo para crear uno?"
	promptAskFirstHome  = "2. ¿Es tu primera vivienda? (Sí / No)"
	promptAskHomeType   = "3. ¿Es una casa o un departamento?"
	promptAskPrice      = "4. ¿Cuál es el precio de compra de tu propiedad? (en UF)"
	promptAskWorkerType = "5. ¿Qué tipo de trabajador eres?\n1. Dependiente\n2. Independiente\n3. Socio Empresa"

	promptWorkerTypeRetry = "No entendí tu respuesta. Por favor responde 1 (Dependiente), 2 (Independiente) o 3 (Socio Empresa)."

	promptDone = "Muchas gracias, todos los documentos están revisados y estaríamos ok para comenzar con el proceso de evaluación crediticia. Estaremos en contacto por mail. Nos vemos!"
)

func promptWelcomeNamed(name string) string {
	return fmt.Sprintf("Hola %s! Soy MarIA, tu asistente virtual que te va a apoyar con la gestión de tu crédito hipotecario. Lo primero que vamos a hacer es contestar unas preguntas.", name)
}

func promptRecordCreated(name string) string {
	return fmt.Sprintf("Gracias %s, ya creé tu registro.", name)
}

func promptDocumentChecklist(category catalog.Category) string {
	var b strings.Builder
	b.WriteString("Ahora, vamos a necesitar que me puedas enviar el siguiente listado de documentos (")
	b.WriteString(string(category))
	b.WriteString("):\n")
	for _, doc := range catalog.RequiredDocuments(category) {
		b.WriteString("- ")
		b.WriteString(doc)
		b.WriteString("\n")
	}
	b.WriteString("Puedes enviarlos como archivos adjuntos por este mismo chat.")
	return b.String()
}

func promptDocumentReceived(received, required int) string {
	return fmt.Sprintf("Documento recibido (%d de %d).", received, required)
}
