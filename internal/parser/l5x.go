package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/plc-analyzer/backend/internal/models"
)

// supportedL5XMajors lists the SchemaRevision major versions understood here.
var supportedL5XMajors = map[string]bool{"1": true}

// L5XParser handles Studio 5000 XML exports.
// Format: <RSLogix5000Content SchemaRevision="1.0"><Controller>...</Controller></RSLogix5000Content>
type L5XParser struct{}

func NewL5XParser() *L5XParser {
	return &L5XParser{}
}

func (p *L5XParser) Name() string {
	return "l5x"
}

func (p *L5XParser) Kind() models.FileKind {
	return models.KindL5X
}

func (p *L5XParser) CanParse(fileName string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".l5x") {
		return true
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, utf8BOM), " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<RSLogix5000Content"))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// XML shapes. Pointers to section wrappers distinguish an absent section
// from an empty one.

type l5xContent struct {
	XMLName          xml.Name
	SchemaRevision   string         `xml:"SchemaRevision,attr"`
	SoftwareRevision string         `xml:"SoftwareRevision,attr"`
	TargetName       string         `xml:"TargetName,attr"`
	TargetType       string         `xml:"TargetType,attr"`
	Controller       *l5xController `xml:"Controller"`
}

type l5xController struct {
	Name      string        `xml:"Name,attr"`
	DataTypes *l5xDataTypes `xml:"DataTypes"`
	Modules   *l5xModules   `xml:"Modules"`
	AOIs      *l5xAOIDefs   `xml:"AddOnInstructionDefinitions"`
	Tags      *l5xTags      `xml:"Tags"`
	Programs  *l5xPrograms  `xml:"Programs"`
	Tasks     *l5xTasks     `xml:"Tasks"`
}

// l5xText is a CDATA carrier that may hold localized variants.
type l5xText struct {
	Text      string         `xml:",chardata"`
	Localized []l5xLocalized `xml:",any"`
}

type l5xLocalized struct {
	Lang string `xml:"Lang,attr"`
	Text string `xml:",chardata"`
}

func (t *l5xText) value() *string {
	if t == nil {
		return nil
	}
	if s := optionalString(t.Text); s != nil {
		return s
	}
	for _, l := range t.Localized {
		if s := optionalString(l.Text); s != nil {
			return s
		}
	}
	return nil
}

type l5xDataTypes struct {
	Items []l5xDataType `xml:"DataType"`
}

type l5xDataType struct {
	Name        string      `xml:"Name,attr"`
	Family      string      `xml:"Family,attr"`
	Description *l5xText    `xml:"Description"`
	Members     []l5xMember `xml:"Members>Member"`
}

type l5xMember struct {
	Name        string   `xml:"Name,attr"`
	DataType    string   `xml:"DataType,attr"`
	Dimension   string   `xml:"Dimension,attr"`
	Hidden      string   `xml:"Hidden,attr"`
	Description *l5xText `xml:"Description"`
}

type l5xAOIDefs struct {
	Items []l5xAOI `xml:"AddOnInstructionDefinition"`
}

type l5xAOI struct {
	Name        string         `xml:"Name,attr"`
	Revision    string         `xml:"Revision,attr"`
	Vendor      string         `xml:"Vendor,attr"`
	Description *l5xText       `xml:"Description"`
	Parameters  []l5xParameter `xml:"Parameters>Parameter"`
}

type l5xParameter struct {
	Name           string   `xml:"Name,attr"`
	DataType       string   `xml:"DataType,attr"`
	Usage          string   `xml:"Usage,attr"`
	Required       string   `xml:"Required,attr"`
	Visible        string   `xml:"Visible,attr"`
	ExternalAccess string   `xml:"ExternalAccess,attr"`
	Description    *l5xText `xml:"Description"`
}

type l5xModules struct {
	Items []l5xModule `xml:"Module"`
}

type l5xModule struct {
	Name            string          `xml:"Name,attr"`
	CatalogNumber   string          `xml:"CatalogNumber,attr"`
	Vendor          string          `xml:"Vendor,attr"`
	ProductType     string          `xml:"ProductType,attr"`
	ProductCode     string          `xml:"ProductCode,attr"`
	Major           string          `xml:"Major,attr"`
	Minor           string          `xml:"Minor,attr"`
	ParentModule    string          `xml:"ParentModule,attr"`
	ParentModPortID string          `xml:"ParentModPortId,attr"`
	Inhibited       string          `xml:"Inhibited,attr"`
	MajorFault      string          `xml:"MajorFault,attr"`
	EKey            *l5xEKey        `xml:"EKey"`
	Ports           []l5xPort       `xml:"Ports>Port"`
	Connections     []l5xConnection `xml:"Communications>Connections>Connection"`
}

type l5xEKey struct {
	State string `xml:"State,attr"`
}

type l5xPort struct {
	ID       string `xml:"Id,attr"`
	Address  string `xml:"Address,attr"`
	Type     string `xml:"Type,attr"`
	Upstream string `xml:"Upstream,attr"`
}

type l5xConnection struct {
	Name string `xml:"Name,attr"`
	RPI  string `xml:"RPI,attr"`
	Type string `xml:"Type,attr"`
}

type l5xTags struct {
	Items []l5xTag `xml:"Tag"`
}

type l5xTag struct {
	Name           string   `xml:"Name,attr"`
	TagType        string   `xml:"TagType,attr"`
	DataType       string   `xml:"DataType,attr"`
	Dimensions     string   `xml:"Dimensions,attr"`
	Radix          string   `xml:"Radix,attr"`
	AliasFor       string   `xml:"AliasFor,attr"`
	Usage          string   `xml:"Usage,attr"`
	Constant       string   `xml:"Constant,attr"`
	ExternalAccess string   `xml:"ExternalAccess,attr"`
	Description    *l5xText `xml:"Description"`
}

type l5xPrograms struct {
	Items []l5xProgram `xml:"Program"`
}

type l5xProgram struct {
	Name            string       `xml:"Name,attr"`
	MainRoutineName string       `xml:"MainRoutineName,attr"`
	Disabled        string       `xml:"Disabled,attr"`
	Description     *l5xText     `xml:"Description"`
	Tags            []l5xTag     `xml:"Tags>Tag"`
	Routines        []l5xRoutine `xml:"Routines>Routine"`
}

type l5xRoutine struct {
	Name        string    `xml:"Name,attr"`
	Type        string    `xml:"Type,attr"`
	Description *l5xText  `xml:"Description"`
	Rungs       []l5xRung `xml:"RLLContent>Rung"`
}

type l5xRung struct {
	Number  string   `xml:"Number,attr"`
	Type    string   `xml:"Type,attr"`
	Comment *l5xText `xml:"Comment"`
	Text    l5xText  `xml:"Text"`
}

type l5xTasks struct {
	Items []l5xTask `xml:"Task"`
}

type l5xTask struct {
	Name                 string   `xml:"Name,attr"`
	Type                 string   `xml:"Type,attr"`
	Rate                 string   `xml:"Rate,attr"`
	Priority             string   `xml:"Priority,attr"`
	Watchdog             string   `xml:"Watchdog,attr"`
	DisableUpdateOutputs string   `xml:"DisableUpdateOutputs,attr"`
	InhibitTask          string   `xml:"InhibitTask,attr"`
	Description          *l5xText `xml:"Description"`
	Scheduled            []struct {
		Name string `xml:"Name,attr"`
	} `xml:"ScheduledPrograms>ScheduledProgram"`
}

// Parse decodes the document, validates the schema revision and converts each
// section concurrently.
func (p *L5XParser) Parse(ctx context.Context, data []byte) (*models.Snapshot, error) {
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))) == 0 {
		return nil, truncated(0, "empty document")
	}

	var doc l5xContent
	if err := xml.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return nil, classifyXMLError(err)
	}
	if doc.XMLName.Local != "RSLogix5000Content" {
		return nil, malformed(0, "unexpected root element <%s>", doc.XMLName.Local)
	}
	if strings.TrimSpace(doc.SchemaRevision) == "" {
		return nil, unsupported("missing SchemaRevision")
	}
	if !supportedL5XMajors[schemaMajor(doc.SchemaRevision)] {
		return nil, unsupported("SchemaRevision %s", doc.SchemaRevision)
	}
	if doc.Controller == nil {
		return nil, malformed(0, "missing <Controller> element")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := models.NewSnapshot()
	snap.Kind = models.KindL5X
	snap.SchemaRevision = strings.TrimSpace(doc.SchemaRevision)
	snap.SoftwareRevision = optionalString(doc.SoftwareRevision)
	snap.ControllerName = optionalString(doc.Controller.Name)
	snap.TargetType = optionalString(doc.TargetType)

	ctrl := doc.Controller
	snap.Sections = models.Sections{
		DataTypes: ctrl.DataTypes != nil,
		AOIs:      ctrl.AOIs != nil,
		Modules:   ctrl.Modules != nil,
		Tags:      ctrl.Tags != nil,
		Programs:  ctrl.Programs != nil,
		Tasks:     ctrl.Tasks != nil,
	}

	var ctrlTags, progTags []models.Tag

	// Sections share nothing; each goroutine owns its output and name table.
	g, gctx := errgroup.WithContext(ctx)
	if ctrl.DataTypes != nil {
		g.Go(func() error {
			snap.UDTs = convertL5XDataTypes(ctrl.DataTypes.Items, newTypeNames())
			return nil
		})
	}
	if ctrl.AOIs != nil {
		g.Go(func() error {
			aois, err := convertL5XAOIs(ctrl.AOIs.Items, newTypeNames())
			snap.AOIs = aois
			return err
		})
	}
	if ctrl.Modules != nil {
		g.Go(func() error {
			mods, err := convertL5XModules(ctrl.Modules.Items)
			snap.Modules = mods
			return err
		})
	}
	if ctrl.Tags != nil {
		g.Go(func() error {
			ctrlTags = convertL5XTags(ctrl.Tags.Items, models.ScopeController, newTypeNames())
			return nil
		})
	}
	if ctrl.Programs != nil {
		g.Go(func() error {
			return convertL5XPrograms(gctx, ctrl.Programs.Items, snap, &progTags, newTypeNames())
		})
	}
	if ctrl.Tasks != nil {
		g.Go(func() error {
			tasks, err := convertL5XTasks(ctrl.Tasks.Items)
			snap.Tasks = tasks
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Tags = append(snap.Tags, ctrlTags...)
	snap.Tags = append(snap.Tags, progTags...)

	if err := checkInvariants(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// classifyXMLError maps decoder failures onto the parse error taxonomy.
func classifyXMLError(err error) error {
	if errors.Is(err, io.EOF) {
		return &ParseError{Kind: ErrMalformedDocument, Msg: "no root element", Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParseError{Kind: ErrTruncatedInput, Msg: "document ended early", Err: err}
	}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		if strings.Contains(syn.Msg, "unexpected EOF") {
			return &ParseError{Kind: ErrTruncatedInput, Line: syn.Line, Msg: "document ended early", Err: err}
		}
		return &ParseError{Kind: ErrMalformedDocument, Line: syn.Line, Msg: syn.Msg, Err: err}
	}
	return &ParseError{Kind: ErrMalformedDocument, Err: err}
}

func convertL5XDataTypes(items []l5xDataType, names typeNames) []models.UDT {
	out := make([]models.UDT, 0, len(items))
	for _, dt := range items {
		udt := models.UDT{
			Name:        strings.TrimSpace(dt.Name),
			Family:      optionalString(dt.Family),
			Description: dt.Description.value(),
			Members:     make([]models.UDTMember, 0, len(dt.Members)),
		}
		for _, m := range dt.Members {
			member := models.UDTMember{
				Name:        strings.TrimSpace(m.Name),
				DataType:    names.get(strings.TrimSpace(m.DataType)),
				Description: m.Description.value(),
				Hidden:      parseBool(m.Hidden),
			}
			// A non-numeric dimension on a member is tolerated as absent.
			if d, err := optionalInt(m.Dimension, 0, "Dimension"); err == nil {
				member.Dimension = d
			}
			udt.Members = append(udt.Members, member)
		}
		out = append(out, udt)
	}
	return out
}

func convertL5XAOIs(items []l5xAOI, names typeNames) ([]models.AOI, error) {
	out := make([]models.AOI, 0, len(items))
	for _, a := range items {
		aoi := models.AOI{
			Name:        strings.TrimSpace(a.Name),
			Revision:    strings.TrimSpace(a.Revision),
			Vendor:      optionalString(a.Vendor),
			Description: a.Description.value(),
			Parameters:  make([]models.AOIParameter, 0, len(a.Parameters)),
		}
		for _, prm := range a.Parameters {
			usage, err := parameterUsage(prm.Usage)
			if err != nil {
				return nil, malformed(0, "AOI %s parameter %s: %v", aoi.Name, prm.Name, err)
			}
			aoi.Parameters = append(aoi.Parameters, models.AOIParameter{
				Name:           strings.TrimSpace(prm.Name),
				DataType:       names.get(strings.TrimSpace(prm.DataType)),
				Usage:          usage,
				Required:       parseBool(prm.Required),
				Visible:        parseBool(prm.Visible),
				Description:    prm.Description.value(),
				ExternalAccess: optionalString(prm.ExternalAccess),
			})
		}
		out = append(out, aoi)
	}
	return out, nil
}

func parameterUsage(raw string) (models.ParameterUsage, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "input", "":
		return models.ParameterInput, nil
	case "output":
		return models.ParameterOutput, nil
	case "inout":
		return models.ParameterInOut, nil
	}
	return "", errors.New("unknown usage " + strconv.Quote(raw))
}

// connectionInfo is the opaque blob stored on IOModule.
type connectionInfo struct {
	Vendor      *int             `json:"vendor,omitempty"`
	ProductType *int             `json:"productType,omitempty"`
	ProductCode *int             `json:"productCode,omitempty"`
	Major       *int             `json:"major,omitempty"`
	Minor       *int             `json:"minor,omitempty"`
	ParentPort  *int             `json:"parentPortId,omitempty"`
	Inhibited   bool             `json:"inhibited,omitempty"`
	MajorFault  bool             `json:"majorFault,omitempty"`
	EKey        string           `json:"ekey,omitempty"`
	Ports       []portInfo       `json:"ports,omitempty"`
	Connections []connectionSpec `json:"connections,omitempty"`
}

type portInfo struct {
	ID       int    `json:"id"`
	Address  string `json:"address,omitempty"`
	Type     string `json:"type,omitempty"`
	Upstream bool   `json:"upstream"`
}

type connectionSpec struct {
	Name string `json:"name"`
	RPI  *int   `json:"rpi,omitempty"`
	Type string `json:"type,omitempty"`
}

func (c connectionInfo) empty() bool {
	return c.Vendor == nil && c.ProductType == nil && c.ProductCode == nil &&
		c.Major == nil && c.Minor == nil && c.ParentPort == nil &&
		!c.Inhibited && !c.MajorFault && c.EKey == "" &&
		len(c.Ports) == 0 && len(c.Connections) == 0
}

func (c connectionInfo) marshal() json.RawMessage {
	if c.empty() {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return b
}

// lenientInt parses informational numbers inside connectionInfo; bad values are dropped.
func lenientInt(s string) *int {
	v, err := optionalInt(s, 0, "")
	if err != nil {
		return nil
	}
	return v
}

func convertL5XModules(items []l5xModule) ([]models.IOModule, error) {
	out := make([]models.IOModule, 0, len(items))
	for _, m := range items {
		name := strings.TrimSpace(m.Name)
		mod := models.IOModule{
			Name:          name,
			CatalogNumber: optionalString(m.CatalogNumber),
			ParentModule:  optionalString(m.ParentModule),
		}
		// The controller lists itself as its own parent.
		if mod.ParentModule != nil && *mod.ParentModule == name {
			mod.ParentModule = nil
		}

		info := connectionInfo{
			Vendor:      lenientInt(m.Vendor),
			ProductType: lenientInt(m.ProductType),
			ProductCode: lenientInt(m.ProductCode),
			Major:       lenientInt(m.Major),
			Minor:       lenientInt(m.Minor),
			ParentPort:  lenientInt(m.ParentModPortID),
			Inhibited:   parseBool(m.Inhibited),
			MajorFault:  parseBool(m.MajorFault),
		}
		if m.EKey != nil {
			info.EKey = m.EKey.State
		}

		var upstream, icp *l5xPort
		for i := range m.Ports {
			port := &m.Ports[i]
			id, err := optionalInt(port.ID, 0, "Port Id")
			if err != nil {
				return nil, malformed(0, "module %s: %v", name, err)
			}
			pi := portInfo{Address: port.Address, Type: port.Type, Upstream: parseBool(port.Upstream)}
			if id != nil {
				pi.ID = *id
			}
			info.Ports = append(info.Ports, pi)
			if pi.Upstream && upstream == nil {
				upstream = port
			}
			if strings.EqualFold(port.Type, "ICP") && icp == nil {
				icp = port
			}
		}
		slotPort := upstream
		if slotPort == nil && mod.ParentModule == nil {
			slotPort = icp
		}
		if slotPort != nil {
			// Network addresses (IP, DH+ node strings) are not slots.
			if v, err := strconv.Atoi(strings.TrimSpace(slotPort.Address)); err == nil {
				mod.Slot = &v
			}
		}

		for _, c := range m.Connections {
			info.Connections = append(info.Connections, connectionSpec{
				Name: c.Name,
				RPI:  lenientInt(c.RPI),
				Type: c.Type,
			})
		}
		mod.ConnectionInfo = info.marshal()
		out = append(out, mod)
	}
	return out, nil
}

func convertL5XTags(items []l5xTag, scope string, names typeNames) []models.Tag {
	out := make([]models.Tag, 0, len(items))
	for _, t := range items {
		tagType := strings.TrimSpace(t.TagType)
		if tagType == "" {
			tagType = "Base"
		}
		tag := models.Tag{
			Name:           strings.TrimSpace(t.Name),
			DataType:       names.get(strings.TrimSpace(t.DataType)),
			Scope:          scope,
			TagType:        names.get(tagType),
			Description:    t.Description.value(),
			Usage:          optionalString(t.Usage),
			AliasFor:       optionalString(t.AliasFor),
			Dimensions:     optionalString(t.Dimensions),
			Radix:          optionalString(t.Radix),
			ExternalAccess: optionalString(t.ExternalAccess),
			Constant:       parseBool(t.Constant),
		}
		out = append(out, tag)
	}
	return out
}

func convertL5XPrograms(ctx context.Context, items []l5xProgram, snap *models.Snapshot, tags *[]models.Tag, names typeNames) error {
	programs := make([]models.Program, 0, len(items))
	var routines []models.Routine
	var rungs []models.Rung

	for _, prg := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := strings.TrimSpace(prg.Name)
		programs = append(programs, models.Program{
			Name:        name,
			MainRoutine: optionalString(prg.MainRoutineName),
			Disabled:    parseBool(prg.Disabled),
			Description: prg.Description.value(),
		})
		*tags = append(*tags, convertL5XTags(prg.Tags, models.ProgramScope(name), names)...)

		for _, r := range prg.Routines {
			routine := models.Routine{
				Name:        strings.TrimSpace(r.Name),
				ProgramName: name,
				Type:        routineType(r.Type),
				Description: r.Description.value(),
				RungCount:   len(r.Rungs),
			}
			for i, rg := range r.Rungs {
				num := i
				if n, err := optionalInt(rg.Number, 0, "Rung Number"); err != nil {
					return malformed(0, "routine %s/%s: %v", name, routine.Name, err)
				} else if n != nil {
					num = *n
				}
				if num < 0 {
					return malformed(0, "routine %s/%s: negative rung number %d", name, routine.Name, num)
				}
				rungType := strings.TrimSpace(rg.Type)
				if rungType == "" {
					rungType = "N"
				}
				rungs = append(rungs, models.Rung{
					ProgramName: name,
					RoutineName: routine.Name,
					Number:      num,
					Type:        rungType,
					Comment:     rg.Comment.value(),
					LogicText:   strings.TrimSpace(rg.Text.Text),
				})
			}
			routines = append(routines, routine)
		}
	}

	snap.Programs = programs
	if routines != nil {
		snap.Routines = routines
	}
	if rungs != nil {
		snap.Rungs = rungs
	}
	return nil
}

func routineType(raw string) models.RoutineType {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return models.RoutineLadder
	}
	return models.RoutineType(t)
}

func taskType(raw string, line int) (models.TaskType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CONTINUOUS":
		return models.TaskContinuous, nil
	case "PERIODIC":
		return models.TaskPeriodic, nil
	case "EVENT":
		return models.TaskEvent, nil
	}
	return "", malformed(line, "unknown task type %q", raw)
}

func convertL5XTasks(items []l5xTask) ([]models.Task, error) {
	out := make([]models.Task, 0, len(items))
	for _, t := range items {
		name := strings.TrimSpace(t.Name)
		typ, err := taskType(t.Type, 0)
		if err != nil {
			return nil, err
		}
		task := models.Task{
			Name:                 name,
			Type:                 typ,
			InhibitTask:          parseBool(t.InhibitTask),
			DisableUpdateOutputs: parseBool(t.DisableUpdateOutputs),
			Description:          t.Description.value(),
			ScheduledPrograms:    make([]string, 0, len(t.Scheduled)),
		}
		if task.Rate, err = optionalRate(t.Rate, 0); err != nil {
			return nil, err
		}
		if task.Watchdog, err = optionalInt(t.Watchdog, 0, "Watchdog"); err != nil {
			return nil, err
		}
		prio, err := optionalInt(t.Priority, 0, "Priority")
		if err != nil {
			return nil, err
		}
		if prio != nil {
			task.Priority = *prio
		}
		for _, s := range t.Scheduled {
			task.ScheduledPrograms = append(task.ScheduledPrograms, strings.TrimSpace(s.Name))
		}
		out = append(out, task)
	}
	return out, nil
}
