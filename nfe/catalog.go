package nfe

import (
	"fmt"

	"github.com/beevik/etree"
)

// Group is a functional group of fields, used for listing only.
type Group string

const (
	GroupIdentification Group = "Identificação"
	GroupIssuer         Group = "Emitente"
	GroupRecipient      Group = "Destinatário"
	GroupItems          Group = "Itens"
	GroupICMS           Group = "ICMS do Item"
	GroupOtherTaxes     Group = "Outros Impostos do Item"
	GroupDIFAL          Group = "DIFAL/FCP do Item"
	GroupTotals         Group = "Totais"
)

// Field describes how a single output column is extracted.
type Field struct {
	Name     string
	Group    Group
	Level    Level
	Kind     Kind
	Locator  Locator
	Fallback *Locator
	// Default marks fields selected when nothing else was requested.
	Default bool
}

// Evaluate locates and coerces field value inside scope (document root for
// header fields, det element for item fields). Fallback locator is only
// consulted when primary one finds nothing.
func (f Field) Evaluate(scope *etree.Element) (Value, bool) {
	raw, found := f.Locator.Find(scope)
	if !found && f.Fallback != nil {
		raw, found = f.Fallback.Find(scope)
	}
	return f.Kind.Coerce(raw, found), found
}

// Catalog is an immutable registry of supported fields.
type Catalog struct {
	fields []Field
	index  map[string]int
}

// NewCatalog builds catalog preserving field order. Names must be unique.
func NewCatalog(fields ...Field) (*Catalog, error) {
	c := &Catalog{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if len(f.Name) == 0 {
			return nil, fmt.Errorf("field without name (locator %s)", f.Locator)
		}
		if _, exists := c.index[f.Name]; exists {
			return nil, fmt.Errorf("duplicate field name %q", f.Name)
		}
		c.index[f.Name] = len(c.fields)
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// Lookup returns field descriptor by name.
func (c *Catalog) Lookup(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Fields returns all fields in catalog order.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Groups returns groups in order of first appearance.
func (c *Catalog) Groups() []Group {
	var out []Group
	seen := make(map[Group]bool)
	for _, f := range c.fields {
		if !seen[f.Group] {
			seen[f.Group] = true
			out = append(out, f.Group)
		}
	}
	return out
}

// DefaultSelection selects fields marked as default, in catalog order.
func (c *Catalog) DefaultSelection() *Selection {
	s := &Selection{catalog: c, pos: make(map[string]int)}
	for _, f := range c.fields {
		if f.Default {
			s.set(f.Name, true)
		}
	}
	return s
}

var builtin = mustCatalog(builtinFields()...)

// Builtin returns catalog of NF-e fields known to the program.
func Builtin() *Catalog {
	return builtin
}

func mustCatalog(fields ...Field) *Catalog {
	c, err := NewCatalog(fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func ptr(l Locator) *Locator { return &l }

func header(g Group, name string, k Kind, l Locator) Field {
	return Field{Name: name, Group: g, Level: LevelHeader, Kind: k, Locator: l}
}

func item(g Group, name string, k Kind, l Locator) Field {
	return Field{Name: name, Group: g, Level: LevelItem, Kind: k, Locator: l}
}

func withFallback(f Field, l Locator) Field {
	f.Fallback = ptr(l)
	return f
}

func byDefault(f Field) Field {
	f.Default = true
	return f
}

// Item level ICMS leaves live under one of many regime specific wrappers
// (ICMS00..ICMS90, ICMSSN101..ICMSSN900, ICMSPart, ICMSST), so they are
// matched at any depth below ICMS. Other taxes are handled the same way.
func builtinFields() []Field {
	return []Field{
		// Identification
		byDefault(header(GroupIdentification, "Chave de Acesso", KindIdentifier, Attr(".//infNFe", "Id").TrimPrefix("NFe"))),
		byDefault(header(GroupIdentification, "Número da NF", KindText, Elem(".//ide/nNF"))),
		header(GroupIdentification, "Série", KindText, Elem(".//ide/serie")),
		byDefault(withFallback(header(GroupIdentification, "Data e Hora de Emissão", KindText, Elem(".//ide/dhEmi")), Elem(".//ide/dEmi"))),
		header(GroupIdentification, "Natureza da Operação", KindText, Elem(".//ide/natOp")),
		header(GroupIdentification, "Modelo", KindText, Elem(".//ide/mod")),
		header(GroupIdentification, "Versão do Schema", KindIdentifier, Attr(".//infNFe", "versao")),
		header(GroupIdentification, "Status do Protocolo", KindText, Elem(".//protNFe/infProt/xMotivo")),
		header(GroupIdentification, "Código do Status", KindText, Elem(".//protNFe/infProt/cStat")),

		// Issuer
		withFallback(header(GroupIssuer, "CNPJ do Emitente", KindText, Elem(".//emit/CNPJ")), Elem(".//emit/CPF")),
		byDefault(header(GroupIssuer, "Razão Social Emitente", KindText, Elem(".//emit/xNome"))),
		header(GroupIssuer, "Nome Fantasia Emitente", KindText, Elem(".//emit/xFant")),
		header(GroupIssuer, "UF do Emitente", KindText, Elem(".//emit/enderEmit/UF")),

		// Recipient
		withFallback(header(GroupRecipient, "CNPJ do Destinatário", KindText, Elem(".//dest/CNPJ")), Elem(".//dest/CPF")),
		header(GroupRecipient, "Razão Social Destinatário", KindText, Elem(".//dest/xNome")),
		header(GroupRecipient, "Inscrição Estadual Destinatário", KindText, Elem(".//dest/IE")),
		header(GroupRecipient, "UF do Destinatário", KindText, Elem(".//dest/enderDest/UF")),

		// Items
		item(GroupItems, "Número do Item", KindIdentifier, Attr(".", "nItem")),
		item(GroupItems, "Código do Produto", KindText, Elem("prod/cProd")),
		item(GroupItems, "Código de Barras", KindText, Elem("prod/cEAN")),
		item(GroupItems, "Descrição do Produto", KindText, Elem("prod/xProd")),
		item(GroupItems, "NCM", KindText, Elem("prod/NCM")),
		item(GroupItems, "CEST", KindText, Elem("prod/CEST")),
		item(GroupItems, "CFOP do Item", KindText, Elem("prod/CFOP")),
		item(GroupItems, "Unidade Comercial", KindText, Elem("prod/uCom")),
		item(GroupItems, "Quantidade Comercial", KindDecimal, Elem("prod/qCom")),
		item(GroupItems, "Valor Unitário", KindDecimal, Elem("prod/vUnCom")),
		item(GroupItems, "Valor Total do Item", KindDecimal, Elem("prod/vProd")),

		// ICMS
		item(GroupICMS, "Origem da Mercadoria", KindText, Elem("imposto/ICMS//orig")),
		withFallback(item(GroupICMS, "CST/CSOSN", KindText, Elem("imposto/ICMS//CST")), Elem("imposto/ICMS//CSOSN")),
		item(GroupICMS, "Modalidade da BC do ICMS", KindText, Elem("imposto/ICMS//modBC")),
		item(GroupICMS, "Base de Cálculo ICMS", KindDecimal, Elem("imposto/ICMS//vBC")),
		item(GroupICMS, "Alíquota ICMS", KindDecimal, Elem("imposto/ICMS//pICMS")),
		item(GroupICMS, "Valor ICMS", KindDecimal, Elem("imposto/ICMS//vICMS")),

		// IPI, PIS, COFINS
		item(GroupOtherTaxes, "Valor IPI", KindDecimal, Elem("imposto/IPI//vIPI")),
		item(GroupOtherTaxes, "Valor PIS", KindDecimal, Elem("imposto/PIS//vPIS")),
		item(GroupOtherTaxes, "Valor COFINS", KindDecimal, Elem("imposto/COFINS//vCOFINS")),

		// Interstate sharing
		item(GroupDIFAL, "Base de Cálculo UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/vBCUFDest")),
		item(GroupDIFAL, "Base de Cálculo FCP UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/vBCFCPUFDest")),
		item(GroupDIFAL, "Percentual FCP UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/pFCPUFDest")),
		item(GroupDIFAL, "Alíquota Interna UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/pICMSUFDest")),
		item(GroupDIFAL, "Alíquota Interestadual", KindDecimal, Elem("imposto/ICMSUFDest/pICMSInter")),
		item(GroupDIFAL, "Percentual de Partilha", KindDecimal, Elem("imposto/ICMSUFDest/pICMSInterPart")),
		item(GroupDIFAL, "Valor FCP UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/vFCPUFDest")),
		item(GroupDIFAL, "Valor ICMS UF Destino", KindDecimal, Elem("imposto/ICMSUFDest/vICMSUFDest")),
		item(GroupDIFAL, "Valor ICMS UF Remetente", KindDecimal, Elem("imposto/ICMSUFDest/vICMSUFRemet")),

		// Totals
		byDefault(header(GroupTotals, "Valor Total da NF", KindDecimal, Elem(".//total/ICMSTot/vNF"))),
		header(GroupTotals, "Valor Total dos Produtos", KindDecimal, Elem(".//total/ICMSTot/vProd")),
		header(GroupTotals, "Valor Total do ICMS", KindDecimal, Elem(".//total/ICMSTot/vICMS")),
		header(GroupTotals, "Valor Total do IPI", KindDecimal, Elem(".//total/ICMSTot/vIPI")),
		header(GroupTotals, "Valor Total do Frete", KindDecimal, Elem(".//total/ICMSTot/vFrete")),
		header(GroupTotals, "Valor Total do Desconto", KindDecimal, Elem(".//total/ICMSTot/vDesc")),
	}
}
