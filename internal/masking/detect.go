package masking

import "regexp"

// EntityType classifies a detected sensitive span.
type EntityType string

const (
	TypePerson      EntityType = "PERSON"
	TypeCompany     EntityType = "COMPANY"
	TypePhone       EntityType = "PHONE"
	TypeEmail       EntityType = "EMAIL"
	TypeBankAccount EntityType = "BANK_ACCOUNT"
	TypeIDNumber    EntityType = "ID_NUMBER"
	TypeCreditCard  EntityType = "CREDIT_CARD"
)

// Entry is one detected sensitive span, with byte offsets [Start, End) into
// the source text.
type Entry struct {
	Original string
	Token    string
	Type     EntityType
	Start    int
	End      int
}

type detector struct {
	typ EntityType
	re  *regexp.Regexp
}

// Regex detectors in fixed evaluation order. The order matters: tokens are
// numbered as matches are found, and the overlap filter keeps whichever
// entity was collected first when two spans start at the same offset.
var regexDetectors = []detector{
	{TypeEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{TypePhone, regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)},
	{TypeCreditCard, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{TypeBankAccount, regexp.MustCompile(`(?i)\b(?:cuenta|account|iban|clabe)[\s:]*[\d\s-]{10,30}\b`)},
	{TypeIDNumber, regexp.MustCompile(`(?i)\b(?:RFC|CURP|SSN|DNI|NIF|NIE)[\s:]*[A-Z0-9]{8,18}\b`)},
}

// Organization names: capitalized word run followed by a legal-entity suffix.
var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-záéíóúñ]+(?:\s+[A-Z][a-záéíóúñ]+)*\s+(?:S\.?A\.?(?:\s*de\s*C\.?V\.?)?)\b`),
	regexp.MustCompile(`\b[A-Z][a-záéíóúñ]+(?:\s+[A-Z][a-záéíóúñ]+)*\s+(?:S\.?\s*de\s*R\.?L\.?(?:\s*de\s*C\.?V\.?)?)\b`),
	regexp.MustCompile(`\b[A-Z][a-záéíóúñ]+(?:\s+[A-Z][a-záéíóúñ]+)*\s+(?:Inc\.?|LLC|Ltd\.?|Corp\.?|GmbH)\b`),
}

// Person names: 2-4 consecutive capitalized words.
var personPattern = regexp.MustCompile(`\b([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+){1,3})\b`)

// Document-jargon words that disqualify a capitalized run from being treated
// as a person name. Bilingual because source documents are Spanish/English.
var personStoplist = map[string]struct{}{
	"Factura": {}, "Invoice": {}, "Total": {}, "Subtotal": {},
	"Cliente": {}, "Customer": {}, "Proveedor": {}, "Supplier": {},
	"Fecha": {}, "Date": {}, "Número": {}, "Number": {},
	"Orden": {}, "Order": {}, "Compra": {}, "Purchase": {},
	"Venta": {}, "Sale": {}, "Descripción": {}, "Description": {},
	"Cantidad": {}, "Quantity": {}, "Precio": {}, "Price": {},
}

const (
	personMinLen = 5
	personMaxLen = 50
)
