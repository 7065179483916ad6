package tools

import "fmt"

// Display tool names.
const (
	ToolGenerateForm  = "generateForm"
	ToolGenerateChart = "generateChart"
	ToolGenerateCode  = "generateCode"
	ToolGenerateCard  = "generateCard"
)

// FormFieldOption is an option for select and radio fields.
type FormFieldOption struct {
	Label string `json:"label" jsonschema:"required"`
	Value string `json:"value" jsonschema:"required"`
}

// FormField is one field of a generated form.
type FormField struct {
	ID           string            `json:"id" jsonschema:"required"`
	Type         string            `json:"type" jsonschema:"required,enum=text,enum=textarea,enum=select,enum=checkbox,enum=radio,enum=date,enum=slider,enum=file,enum=number,enum=email"`
	Label        string            `json:"label" jsonschema:"required"`
	Placeholder  string            `json:"placeholder,omitempty"`
	Required     *bool             `json:"required,omitempty"`
	DefaultValue interface{}       `json:"defaultValue,omitempty"`
	Options      []FormFieldOption `json:"options,omitempty"`
	Min          *int              `json:"min,omitempty"`
	Max          *int              `json:"max,omitempty"`
	Step         *int              `json:"step,omitempty"`
}

var formFieldTypes = map[string]bool{
	"text": true, "textarea": true, "select": true, "checkbox": true,
	"radio": true, "date": true, "slider": true, "file": true,
	"number": true, "email": true,
}

// GenerateFormArgs are the arguments of the generateForm tool.
type GenerateFormArgs struct {
	Type        string      `json:"type,omitempty" jsonschema:"enum=form,default=form"`
	Title       string      `json:"title" jsonschema:"required"`
	Description string      `json:"description,omitempty"`
	Fields      []FormField `json:"fields" jsonschema:"required"`
	SubmitLabel string      `json:"submitLabel,omitempty"`
}

func (a *GenerateFormArgs) Validate() error {
	if a.Type != "" && a.Type != "form" {
		return fmt.Errorf("type must be %q", "form")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	for i := range a.Fields {
		field := &a.Fields[i]
		if field.ID == "" {
			return fmt.Errorf("field %d is missing an id", i)
		}
		if !formFieldTypes[field.Type] {
			return fmt.Errorf("field %q has unsupported type %q", field.ID, field.Type)
		}
	}
	return nil
}

// ChartDataPoint is one labeled value in a chart.
type ChartDataPoint struct {
	Label string  `json:"label" jsonschema:"required"`
	Value float64 `json:"value" jsonschema:"required"`
}

// GenerateChartArgs are the arguments of the generateChart tool.
type GenerateChartArgs struct {
	Type        string           `json:"type,omitempty" jsonschema:"enum=chart,default=chart"`
	ChartType   string           `json:"chartType" jsonschema:"required,enum=line,enum=bar,enum=pie,enum=area"`
	Title       string           `json:"title" jsonschema:"required"`
	Description string           `json:"description,omitempty"`
	Data        []ChartDataPoint `json:"data" jsonschema:"required"`
}

func (a *GenerateChartArgs) Validate() error {
	if a.Type != "" && a.Type != "chart" {
		return fmt.Errorf("type must be %q", "chart")
	}
	switch a.ChartType {
	case "line", "bar", "pie", "area":
	default:
		return fmt.Errorf("chartType %q is not one of line, bar, pie, area", a.ChartType)
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// GenerateCodeArgs are the arguments of the generateCode tool.
type GenerateCodeArgs struct {
	Type            string `json:"type,omitempty" jsonschema:"enum=code,default=code"`
	Language        string `json:"language" jsonschema:"required"`
	Filename        string `json:"filename,omitempty"`
	Code            string `json:"code" jsonschema:"required"`
	Editable        *bool  `json:"editable,omitempty"`
	ShowLineNumbers *bool  `json:"showLineNumbers,omitempty"`
}

func (a *GenerateCodeArgs) Validate() error {
	if a.Type != "" && a.Type != "code" {
		return fmt.Errorf("type must be %q", "code")
	}
	if a.Language == "" {
		return fmt.Errorf("language is required")
	}
	return nil
}

// CardMedia is an image or video attached to a card.
type CardMedia struct {
	Type string `json:"type" jsonschema:"required,enum=image,enum=video"`
	URL  string `json:"url" jsonschema:"required"`
	Alt  string `json:"alt,omitempty"`
}

// CardAction is an action button on a card.
type CardAction struct {
	Label   string `json:"label" jsonschema:"required"`
	Action  string `json:"action" jsonschema:"required"`
	Variant string `json:"variant,omitempty" jsonschema:"enum=default,enum=secondary,enum=destructive,enum=outline"`
}

// GenerateCardArgs are the arguments of the generateCard tool.
type GenerateCardArgs struct {
	Type        string       `json:"type,omitempty" jsonschema:"enum=card,default=card"`
	Title       string       `json:"title" jsonschema:"required"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	Media       *CardMedia   `json:"media,omitempty"`
	Actions     []CardAction `json:"actions,omitempty"`
}

func (a *GenerateCardArgs) Validate() error {
	if a.Type != "" && a.Type != "card" {
		return fmt.Errorf("type must be %q", "card")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if a.Media != nil {
		if a.Media.Type != "image" && a.Media.Type != "video" {
			return fmt.Errorf("media type %q is not one of image, video", a.Media.Type)
		}
		if a.Media.URL == "" {
			return fmt.Errorf("media url is required")
		}
	}
	for i := range a.Actions {
		action := &a.Actions[i]
		if action.Label == "" || action.Action == "" {
			return fmt.Errorf("action %d requires label and action", i)
		}
		switch action.Variant {
		case "", "default", "secondary", "destructive", "outline":
		default:
			return fmt.Errorf("action %q has unsupported variant %q", action.Label, action.Variant)
		}
	}
	return nil
}

// NewDisplayTools builds the four display tools in their canonical order.
func NewDisplayTools() ([]Tool, error) {
	form, err := newDisplayTool[GenerateFormArgs](ToolGenerateForm,
		"Generate an interactive form with various field types "+
			"including text, textarea, select, checkbox, radio, date, slider, file, "+
			"number, and email fields.")
	if err != nil {
		return nil, err
	}

	chart, err := newDisplayTool[GenerateChartArgs](ToolGenerateChart,
		"Generate a data visualization chart. "+
			"Supports line, bar, pie, and area chart types.")
	if err != nil {
		return nil, err
	}

	code, err := newDisplayTool[GenerateCodeArgs](ToolGenerateCode,
		"Generate a code block with syntax highlighting. "+
			"Supports optional filename, editability, and line numbers.")
	if err != nil {
		return nil, err
	}

	card, err := newDisplayTool[GenerateCardArgs](ToolGenerateCard,
		"Generate a card component with title, description, content, "+
			"media (image or video), and action buttons.")
	if err != nil {
		return nil, err
	}

	return []Tool{form, chart, code, card}, nil
}
