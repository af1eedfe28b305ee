package parser

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plc-analyzer/backend/internal/models"
)

// supportedIEMajors lists the IE_VER major versions understood here.
var supportedIEMajors = map[string]bool{"2": true}

// knownL5KBlocks are block keywords recognised even when the document does
// not contain their END_ line (so truncation is detected).
var knownL5KBlocks = map[string]bool{
	"CONTROLLER":                    true,
	"DATATYPE":                      true,
	"MODULE":                        true,
	"ADD_ON_INSTRUCTION_DEFINITION": true,
	"PARAMETERS":                    true,
	"LOCAL_TAGS":                    true,
	"TAG":                           true,
	"PROGRAM":                       true,
	"ROUTINE":                       true,
	"ST_ROUTINE":                    true,
	"FBD_ROUTINE":                   true,
	"SFC_ROUTINE":                   true,
	"TASK":                          true,
	"CONNECTION":                    true,
	"CONFIG":                        true,
	"ENCODED_DATA":                  true,
}

// L5KParser handles Studio 5000 text exports.
// Format: IE_VER := 2.x; CONTROLLER name (...) ... END_CONTROLLER
type L5KParser struct{}

func NewL5KParser() *L5KParser {
	return &L5KParser{}
}

func (p *L5KParser) Name() string {
	return "l5k"
}

func (p *L5KParser) Kind() models.FileKind {
	return models.KindL5K
}

func (p *L5KParser) CanParse(fileName string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".l5k") {
		return true
	}
	return bytes.Contains(head, []byte("IE_VER")) || bytes.Contains(head, []byte("CONTROLLER "))
}

// Parse scans the document into logical units and walks the block structure.
func (p *L5KParser) Parse(ctx context.Context, data []byte) (*models.Snapshot, error) {
	text := string(bytes.TrimPrefix(data, utf8BOM))
	if strings.TrimSpace(text) == "" {
		return nil, truncated(0, "empty document")
	}
	if !strings.Contains(text, "IE_VER") && !strings.Contains(text, "CONTROLLER") {
		return nil, malformed(0, "not an L5K document")
	}

	run := &l5kRun{
		ctx:   ctx,
		s:     newL5KScanner(text),
		snap:  models.NewSnapshot(),
		names: newTypeNames(),
	}
	if err := run.document(); err != nil {
		return nil, err
	}
	if err := checkInvariants(run.snap); err != nil {
		return nil, err
	}
	return run.snap, nil
}

// l5kUnit is one logical statement or block header.
type l5kUnit struct {
	text string
	line int
}

// l5kScanner splits the document into logical units. Statements end at a ';'
// outside quotes and brackets; block headers end at the line where their
// attribute list closes.
type l5kScanner struct {
	lines       []string
	pos         int
	pending     string
	pendingLine int
	blocks      map[string]bool
}

func newL5KScanner(text string) *l5kScanner {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	blocks := make(map[string]bool, len(knownL5KBlocks))
	for k := range knownL5KBlocks {
		blocks[k] = true
	}
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "END_") && !strings.ContainsAny(t, " \t;(") {
			blocks[t[len("END_"):]] = true
		}
	}
	return &l5kScanner{lines: lines, blocks: blocks}
}

// line returns the number of the last line consumed.
func (s *l5kScanner) line() int {
	return s.pos
}

func (s *l5kScanner) readLine() (string, int, bool) {
	if s.pending != "" {
		l, n := s.pending, s.pendingLine
		s.pending = ""
		return l, n, true
	}
	if s.pos >= len(s.lines) {
		return "", 0, false
	}
	s.pos++
	return s.lines[s.pos-1], s.pos, true
}

func (s *l5kScanner) isBlockWord(w string) bool {
	return strings.HasPrefix(w, "END_") || s.blocks[w]
}

func (s *l5kScanner) next() (l5kUnit, bool, error) {
	for {
		raw, lineNo, ok := s.readLine()
		if !ok {
			return l5kUnit{}, false, nil
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "(*") {
			if err := s.skipComment(trimmed, lineNo); err != nil {
				return l5kUnit{}, false, err
			}
			continue
		}

		if s.isBlockWord(firstWord(trimmed)) {
			var b strings.Builder
			b.WriteString(trimmed)
			var st scanState
			st.feed(trimmed)
			for st.open() {
				more, _, ok := s.readLine()
				if !ok {
					return l5kUnit{}, false, truncated(lineNo, "unterminated block header")
				}
				b.WriteByte('\n')
				b.WriteString(more)
				st.feed(more)
			}
			return l5kUnit{text: strings.TrimSpace(b.String()), line: lineNo}, true, nil
		}

		var b strings.Builder
		var st scanState
		cur, curLine := raw, lineNo
		for {
			if idx := st.terminator(cur); idx >= 0 {
				b.WriteString(cur[:idx])
				if rest := cur[idx+1:]; strings.TrimSpace(rest) != "" {
					s.pending, s.pendingLine = rest, curLine
				}
				return l5kUnit{text: strings.TrimSpace(b.String()), line: lineNo}, true, nil
			}
			b.WriteString(cur)
			b.WriteByte('\n')
			cur, curLine, ok = s.readLine()
			if !ok {
				return l5kUnit{}, false, truncated(lineNo, "unterminated statement")
			}
		}
	}
}

func (s *l5kScanner) skipComment(first string, lineNo int) error {
	if strings.Contains(first[2:], "*)") {
		return nil
	}
	for {
		l, _, ok := s.readLine()
		if !ok {
			return truncated(lineNo, "unterminated comment")
		}
		if strings.Contains(l, "*)") {
			return nil
		}
	}
}

// skipBlock consumes raw lines up to the matching END_<word>. visit, when
// non-nil, sees every skipped line.
func (s *l5kScanner) skipBlock(word string, lineNo int, visit func(line string)) error {
	end := "END_" + word
	depth := 0
	for {
		l, _, ok := s.readLine()
		if !ok {
			return truncated(lineNo, "missing %s", end)
		}
		t := strings.TrimSpace(l)
		switch firstWord(t) {
		case word:
			depth++
		case end:
			if depth == 0 {
				return nil
			}
			depth--
		}
		if visit != nil {
			visit(t)
		}
	}
}

// scanState tracks quoting and nesting across lines.
type scanState struct {
	quote  byte
	escape bool
	depth  int
}

func (st *scanState) open() bool {
	return st.quote != 0 || st.depth > 0
}

func (st *scanState) feed(s string) {
	st.terminator(s)
}

// terminator feeds s and returns the index of the first statement-ending ';'
// at depth zero, or -1.
func (st *scanState) terminator(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.quote != 0 {
			switch {
			case st.escape:
				st.escape = false
			case c == '$':
				st.escape = true
			case c == st.quote:
				st.quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			st.quote = c
		case '(', '[':
			st.depth++
		case ')', ']':
			if st.depth > 0 {
				st.depth--
			}
		case ';':
			if st.depth == 0 {
				return i
			}
		}
	}
	return -1
}

func firstWord(s string) string {
	end := strings.IndexAny(s, " \t\n(;")
	if end < 0 {
		return s
	}
	return s[:end]
}

// matchClose returns the index of the bracket closing s[open], honouring quotes.
func matchClose(s string, open int) int {
	var st scanState
	for i := open; i < len(s); i++ {
		st.terminator(s[i : i+1])
		if st.depth == 0 && st.quote == 0 {
			return i
		}
	}
	return -1
}

// splitTopLevel splits on sep outside quotes and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var st scanState
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep && !st.open() {
			parts = append(parts, s[start:i])
			start = i + 1
			continue
		}
		st.terminator(s[i : i+1])
	}
	return append(parts, s[start:])
}

// l5kAttrs is a parsed "(Key := Value, ...)" list with lower-cased keys.
type l5kAttrs map[string]string

func (a l5kAttrs) get(key string) string {
	return a[strings.ToLower(key)]
}

func (a l5kAttrs) has(key string) bool {
	_, ok := a[strings.ToLower(key)]
	return ok
}

func parseAttrs(body string) l5kAttrs {
	attrs := make(l5kAttrs)
	for _, item := range splitTopLevel(body, ',') {
		k, v, ok := strings.Cut(item, ":=")
		if !ok {
			continue
		}
		attrs[strings.ToLower(strings.TrimSpace(k))] = unquote(strings.TrimSpace(v))
	}
	return attrs
}

// unquote strips surrounding quotes and decodes $ escapes.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	q := v[0]
	if (q != '"' && q != '\'') || v[len(v)-1] != q {
		return v
	}
	return decodeEscapes(v[1 : len(v)-1])
}

func decodeEscapes(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'N', 'n', 'L', 'l':
			b.WriteByte('\n')
		case 'R', 'r':
			b.WriteByte('\r')
		case 'T', 't':
			b.WriteByte('\t')
		case 'P', 'p':
			b.WriteByte('\f')
		case 'Q', 'q':
			b.WriteByte('"')
		case '$', '\'', '"':
			b.WriteByte(s[i])
		default:
			if i+1 < len(s) {
				if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i++
					continue
				}
			}
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// header splits "KEYWORD Name (attrs)" into its parts.
func header(text string) (name string, attrs l5kAttrs) {
	rest := strings.TrimSpace(text[len(firstWord(text)):])
	attrs = l5kAttrs{}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		if j := matchClose(rest, i); j > i {
			attrs = parseAttrs(rest[i+1 : j])
		}
		rest = rest[:i]
	}
	return strings.TrimSpace(rest), attrs
}

// l5kDecl is a "Name : Type[dims] (attrs) := value" or "Name OF Target (attrs)" statement.
type l5kDecl struct {
	name     string
	dataType string
	dims     string
	aliasFor string
	attrs    l5kAttrs
}

func parseDecl(u l5kUnit) (l5kDecl, error) {
	text := u.text
	d := l5kDecl{attrs: l5kAttrs{}}
	end := strings.IndexAny(text, " \t\n:")
	if end <= 0 {
		return d, malformed(u.line, "invalid declaration %q", text)
	}
	d.name = text[:end]
	rest := strings.TrimSpace(text[end:])

	switch {
	case strings.HasPrefix(rest, "OF ") || strings.HasPrefix(rest, "OF\t"):
		rest = strings.TrimSpace(rest[2:])
		stop := strings.IndexAny(rest, " \t\n(")
		if stop < 0 {
			stop = len(rest)
		}
		d.aliasFor = rest[:stop]
		rest = rest[stop:]
	case strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, ":="):
		rest = strings.TrimSpace(rest[1:])
		stop := len(rest)
		for i := 0; i < len(rest); i++ {
			if c := rest[i]; c == ' ' || c == '\t' || c == '\n' || c == '(' || c == ':' {
				stop = i
				break
			}
		}
		d.dataType, d.dims = splitDims(rest[:stop])
		rest = rest[stop:]
	default:
		return d, malformed(u.line, "declaration %q has no data type", d.name)
	}

	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		if j := matchClose(rest, 0); j > 0 {
			d.attrs = parseAttrs(rest[1:j])
		} else {
			return d, malformed(u.line, "unbalanced attribute list on %q", d.name)
		}
	}
	return d, nil
}

// splitDims turns "DINT[10,2]" into ("DINT", "10,2").
func splitDims(s string) (string, string) {
	i := strings.IndexByte(s, '[')
	if i < 0 || !strings.HasSuffix(s, "]") {
		return s, ""
	}
	return s[:i], s[i+1 : len(s)-1]
}

// l5kRun holds the state of one parse.
type l5kRun struct {
	ctx   context.Context
	s     *l5kScanner
	snap  *models.Snapshot
	names typeNames
}

func (r *l5kRun) document() error {
	u, ok, err := r.s.next()
	if err != nil {
		return err
	}
	if !ok {
		return truncated(r.s.line(), "no content")
	}
	if firstWord(u.text) != "IE_VER" {
		if firstWord(u.text) == "CONTROLLER" {
			return unsupported("missing IE_VER")
		}
		return malformed(u.line, "expected IE_VER, found %q", firstWord(u.text))
	}
	_, ver, ok := strings.Cut(u.text, ":=")
	ver = strings.TrimSpace(ver)
	if !ok || ver == "" {
		return malformed(u.line, "IE_VER has no value")
	}
	if !supportedIEMajors[schemaMajor(ver)] {
		return unsupported("IE_VER %s", ver)
	}

	snap := r.snap
	snap.Kind = models.KindL5K
	snap.SchemaRevision = ver
	// Text exports always describe the whole controller.
	snap.Sections = models.Sections{DataTypes: true, AOIs: true, Modules: true, Tags: true, Programs: true, Tasks: true}
	target := "Controller"
	snap.TargetType = &target

	u, ok, err = r.s.next()
	if err != nil {
		return err
	}
	if !ok {
		return truncated(r.s.line(), "missing CONTROLLER block")
	}
	if firstWord(u.text) != "CONTROLLER" {
		return malformed(u.line, "expected CONTROLLER, found %q", firstWord(u.text))
	}
	name, attrs := header(u.text)
	snap.ControllerName = optionalString(name)
	if major := attrs.get("Major"); major != "" {
		rev := major
		if minor, err := strconv.Atoi(attrs.get("Minor")); err == nil {
			rev += "." + leftPad2(minor)
		}
		snap.SoftwareRevision = &rev
	}

	return r.body("END_CONTROLLER", func(u l5kUnit, word string) error {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		switch word {
		case "DATATYPE":
			return r.dataType(u)
		case "MODULE":
			return r.module(u)
		case "ADD_ON_INSTRUCTION_DEFINITION":
			return r.aoi(u)
		case "TAG":
			return r.tags(models.ScopeController, "END_TAG")
		case "PROGRAM":
			return r.program(u)
		case "TASK":
			return r.task(u)
		}
		return r.skipIfBlock(u, word)
	})
}

func leftPad2(n int) string {
	if n < 10 && n >= 0 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// body feeds every unit up to end into fn. Reaching EOF first is truncation.
func (r *l5kRun) body(end string, fn func(u l5kUnit, word string) error) error {
	for {
		u, ok, err := r.s.next()
		if err != nil {
			return err
		}
		if !ok {
			return truncated(r.s.line(), "missing %s", end)
		}
		word := firstWord(u.text)
		if word == end {
			return nil
		}
		if strings.HasPrefix(word, "END_") {
			return malformed(u.line, "unexpected %s, expected %s", word, end)
		}
		if err := fn(u, word); err != nil {
			return err
		}
	}
}

// skipIfBlock skips nested blocks nothing here models. Plain statements are ignored.
func (r *l5kRun) skipIfBlock(u l5kUnit, word string) error {
	if r.s.isBlockWord(word) {
		return r.s.skipBlock(word, u.line, nil)
	}
	return nil
}

func (r *l5kRun) dataType(u l5kUnit) error {
	name, attrs := header(u.text)
	udt := models.UDT{
		Name:        name,
		Family:      optionalString(attrs.get("FamilyType")),
		Description: optionalString(attrs.get("Description")),
		Members:     make([]models.UDTMember, 0),
	}
	err := r.body("END_DATATYPE", func(m l5kUnit, word string) error {
		if r.s.isBlockWord(word) {
			return r.s.skipBlock(word, m.line, nil)
		}
		member, err := parseMember(m, r.names)
		if err != nil {
			return err
		}
		udt.Members = append(udt.Members, member)
		return nil
	})
	if err != nil {
		return err
	}
	r.snap.UDTs = append(r.snap.UDTs, udt)
	return nil
}

// parseMember reads "Type Name[dim] (attrs)" or "BIT Name Host : n (attrs)".
func parseMember(u l5kUnit, names typeNames) (models.UDTMember, error) {
	text := u.text
	typ := firstWord(text)
	rest := strings.TrimSpace(text[len(typ):])
	stop := strings.IndexAny(rest, " \t\n([")
	if stop < 0 {
		stop = len(rest)
	}
	if stop == 0 || typ == "" {
		return models.UDTMember{}, malformed(u.line, "invalid member %q", text)
	}
	m := models.UDTMember{
		Name:     rest[:stop],
		DataType: names.get(typ),
	}
	rest = rest[stop:]
	if strings.HasPrefix(rest, "[") {
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			return m, malformed(u.line, "unbalanced dimension on member %s", m.Name)
		}
		dim, err := optionalInt(rest[1:j], u.line, "Dimension")
		if err != nil {
			return m, err
		}
		m.Dimension = dim
		rest = rest[j+1:]
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		if j := matchClose(rest, i); j > i {
			attrs := parseAttrs(rest[i+1 : j])
			m.Description = optionalString(attrs.get("Description"))
			m.Hidden = parseBool(attrs.get("Hidden"))
		}
	}
	return m, nil
}

func (r *l5kRun) module(u l5kUnit) error {
	name, attrs := header(u.text)
	mod := models.IOModule{
		Name:          name,
		CatalogNumber: optionalString(attrs.get("CatalogNumber")),
		ParentModule:  optionalString(attrs.get("Parent")),
	}
	if mod.ParentModule != nil && *mod.ParentModule == name {
		mod.ParentModule = nil
	}
	slot, err := optionalInt(attrs.get("Slot"), u.line, "Slot")
	if err != nil {
		return err
	}
	mod.Slot = slot

	info := connectionInfo{
		Vendor:      lenientInt(attrs.get("Vendor")),
		ProductType: lenientInt(attrs.get("ProductType")),
		ProductCode: lenientInt(attrs.get("ProductCode")),
		Major:       lenientInt(attrs.get("Major")),
		Minor:       lenientInt(attrs.get("Minor")),
		ParentPort:  lenientInt(attrs.get("ParentModPortId")),
	}
	err = r.s.skipBlock("MODULE", u.line, func(line string) {
		if firstWord(line) != "CONNECTION" {
			return
		}
		cname, cattrs := header(line)
		info.Connections = append(info.Connections, connectionSpec{
			Name: cname,
			RPI:  lenientInt(cattrs.get("Rate")),
		})
	})
	if err != nil {
		return err
	}
	mod.ConnectionInfo = info.marshal()
	r.snap.Modules = append(r.snap.Modules, mod)
	return nil
}

func (r *l5kRun) aoi(u l5kUnit) error {
	name, attrs := header(u.text)
	aoi := models.AOI{
		Name:        name,
		Revision:    attrs.get("Revision"),
		Vendor:      optionalString(attrs.get("Vendor")),
		Description: optionalString(attrs.get("Description")),
		Parameters:  make([]models.AOIParameter, 0),
	}
	err := r.body("END_ADD_ON_INSTRUCTION_DEFINITION", func(b l5kUnit, word string) error {
		if word != "PARAMETERS" {
			return r.skipIfBlock(b, word)
		}
		return r.body("END_PARAMETERS", func(pu l5kUnit, pw string) error {
			if r.s.isBlockWord(pw) {
				return r.s.skipBlock(pw, pu.line, nil)
			}
			d, err := parseDecl(pu)
			if err != nil {
				return err
			}
			usage, err := parameterUsage(d.attrs.get("Usage"))
			if err != nil {
				return malformed(pu.line, "AOI %s parameter %s: %v", name, d.name, err)
			}
			aoi.Parameters = append(aoi.Parameters, models.AOIParameter{
				Name:           d.name,
				DataType:       r.names.get(d.dataType),
				Usage:          usage,
				Required:       parseBool(d.attrs.get("Required")),
				Visible:        parseBool(d.attrs.get("Visible")),
				Description:    optionalString(d.attrs.get("Description")),
				ExternalAccess: optionalString(d.attrs.get("ExternalAccess")),
			})
			return nil
		})
	})
	if err != nil {
		return err
	}
	r.snap.AOIs = append(r.snap.AOIs, aoi)
	return nil
}

func (r *l5kRun) tags(scope, end string) error {
	return r.body(end, func(u l5kUnit, word string) error {
		if r.s.isBlockWord(word) {
			return r.s.skipBlock(word, u.line, nil)
		}
		d, err := parseDecl(u)
		if err != nil {
			return err
		}
		tag := models.Tag{
			Name:           d.name,
			DataType:       r.names.get(d.dataType),
			Scope:          scope,
			TagType:        "Base",
			Description:    optionalString(d.attrs.get("Description")),
			Usage:          optionalString(d.attrs.get("Usage")),
			AliasFor:       optionalString(d.aliasFor),
			Dimensions:     optionalString(d.dims),
			Radix:          optionalString(d.attrs.get("RADIX")),
			ExternalAccess: optionalString(d.attrs.get("ExternalAccess")),
			Constant:       parseBool(d.attrs.get("Constant")),
		}
		switch {
		case d.attrs.get("TagType") != "":
			tag.TagType = d.attrs.get("TagType")
		case d.aliasFor != "":
			tag.TagType = "Alias"
		case d.attrs.has("Producer"):
			tag.TagType = "Consumed"
		case d.attrs.has("ProduceCount"):
			tag.TagType = "Produced"
		}
		tag.TagType = r.names.get(tag.TagType)
		r.snap.Tags = append(r.snap.Tags, tag)
		return nil
	})
}

func (r *l5kRun) program(u l5kUnit) error {
	name, attrs := header(u.text)
	r.snap.Programs = append(r.snap.Programs, models.Program{
		Name:        name,
		MainRoutine: optionalString(attrs.get("MAIN")),
		Disabled:    parseBool(attrs.get("Disabled")),
		Description: optionalString(attrs.get("Description")),
	})
	return r.body("END_PROGRAM", func(b l5kUnit, word string) error {
		switch word {
		case "TAG":
			return r.tags(models.ProgramScope(name), "END_TAG")
		case "ROUTINE":
			return r.routine(name, b)
		case "ST_ROUTINE", "FBD_ROUTINE", "SFC_ROUTINE":
			rname, rattrs := header(b.text)
			r.snap.Routines = append(r.snap.Routines, models.Routine{
				Name:        rname,
				ProgramName: name,
				Type:        models.RoutineType(strings.TrimSuffix(word, "_ROUTINE")),
				Description: optionalString(rattrs.get("Description")),
			})
			return r.s.skipBlock(word, b.line, nil)
		}
		return r.skipIfBlock(b, word)
	})
}

// rungPrefix splits "N: logic" into ("N", "logic").
func rungPrefix(text string) (string, string, bool) {
	i := strings.IndexByte(text, ':')
	if i < 1 || i > 2 {
		return "", "", false
	}
	for _, c := range text[:i] {
		if c < 'A' || c > 'Z' {
			return "", "", false
		}
	}
	return text[:i], strings.TrimSpace(text[i+1:]), true
}

// joinRungLines undoes the line wrapping of long L5K rungs so the logic text
// reads as it does in an L5X export. A wrapped break next to an instruction
// or branch boundary is dropped; one inside an operand becomes one space.
// Quoted text and whitespace within a line are kept verbatim.
func joinRungLines(logic string) string {
	if !strings.ContainsAny(logic, "\r\n") {
		return logic
	}
	boundary := func(c byte) bool {
		return c == '(' || c == ')' || c == '[' || c == ']' || c == ','
	}
	var b strings.Builder
	b.Grow(len(logic))
	var quote byte
	for i := 0; i < len(logic); i++ {
		c := logic[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '$' && i+1 < len(logic):
				i++
				b.WriteByte(logic[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			b.WriteByte(c)
			continue
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			b.WriteByte(c)
			continue
		}
		j := i
		wrapped := false
		for j < len(logic) && (logic[j] == ' ' || logic[j] == '\t' || logic[j] == '\r' || logic[j] == '\n') {
			if logic[j] == '\n' || logic[j] == '\r' {
				wrapped = true
			}
			j++
		}
		switch {
		case !wrapped:
			b.WriteString(logic[i:j])
		case i == 0 || j == len(logic) || boundary(logic[i-1]) || boundary(logic[j]):
			// dropped
		default:
			b.WriteByte(' ')
		}
		i = j - 1
	}
	return b.String()
}

func (r *l5kRun) routine(program string, u l5kUnit) error {
	name, attrs := header(u.text)
	routine := models.Routine{
		Name:        name,
		ProgramName: program,
		Type:        models.RoutineLadder,
		Description: optionalString(attrs.get("Description")),
	}
	var comment *string
	number := 0
	err := r.body("END_ROUTINE", func(s l5kUnit, word string) error {
		kind, rest, ok := rungPrefix(s.text)
		if !ok {
			return r.skipIfBlock(s, word)
		}
		if kind == "RC" {
			c := unquote(rest)
			comment = &c
			return nil
		}
		r.snap.Rungs = append(r.snap.Rungs, models.Rung{
			ProgramName: program,
			RoutineName: name,
			Number:      number,
			Type:        kind,
			Comment:     comment,
			LogicText:   joinRungLines(rest) + ";",
		})
		comment = nil
		number++
		return nil
	})
	if err != nil {
		return err
	}
	routine.RungCount = number
	r.snap.Routines = append(r.snap.Routines, routine)
	return nil
}

func (r *l5kRun) task(u l5kUnit) error {
	name, attrs := header(u.text)
	typ, err := taskType(attrs.get("Type"), u.line)
	if err != nil {
		return err
	}
	task := models.Task{
		Name:                 name,
		Type:                 typ,
		InhibitTask:          parseBool(attrs.get("InhibitTask")),
		DisableUpdateOutputs: parseBool(attrs.get("DisableUpdateOutputs")),
		Description:          optionalString(attrs.get("Description")),
		ScheduledPrograms:    make([]string, 0),
	}
	if task.Rate, err = optionalRate(attrs.get("Rate"), u.line); err != nil {
		return err
	}
	if task.Watchdog, err = optionalInt(attrs.get("Watchdog"), u.line, "Watchdog"); err != nil {
		return err
	}
	prio, err := optionalInt(attrs.get("Priority"), u.line, "Priority")
	if err != nil {
		return err
	}
	if prio != nil {
		task.Priority = *prio
	}
	err = r.body("END_TASK", func(s l5kUnit, word string) error {
		if r.s.isBlockWord(word) {
			return r.s.skipBlock(word, s.line, nil)
		}
		task.ScheduledPrograms = append(task.ScheduledPrograms, strings.TrimSpace(s.text))
		return nil
	})
	if err != nil {
		return err
	}
	r.snap.Tasks = append(r.snap.Tasks, task)
	return nil
}
