package mcp

// Parameter is one declared input (or, nested under Output, one declared
// output) field of a tool's schema. String, Number, Boolean, StringArray,
// NumberArray, Object, and ObjectArray below are the constructors knowledge
// tool registration code calls to build up NewTool's parameter list.
type Parameter interface {
	apply(builder *paramBuilder)
	// toParamDef converts the parameter to a paramDef for output schema reuse.
	toParamDef() paramDef
}

// Option modifies how a Parameter constructor treats the field it declares.
// Required is currently the only one.
type Option interface {
	applyToParam(param parameterBase)
}

type parameterBase struct {
	name        string
	description string
	required    bool
}

type paramBuilder struct {
	params       []paramDef
	outputParams []paramDef
}

type requiredOption struct{}

func (r requiredOption) applyToParam(param parameterBase) {}

// Required marks a Parameter as mandatory in the tool's input schema.
func Required() Option {
	return requiredOption{}
}

func processOptions(options []Option) bool {
	for _, opt := range options {
		if _, ok := opt.(requiredOption); ok {
			return true
		}
	}
	return false
}

func buildPropertiesFromParams(properties []Parameter) map[string]*paramDef {
	props := make(map[string]*paramDef)
	for _, prop := range properties {
		def := prop.toParamDef()
		props[def.name] = &def
	}
	return props
}

type stringParam struct {
	parameterBase
}

func (s *stringParam) toParamDef() paramDef {
	return paramDef{
		name:        s.name,
		paramType:   "string",
		description: s.description,
		required:    s.required,
		properties:  make(map[string]*paramDef),
	}
}

func (s *stringParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, s.toParamDef())
}

type numberParam struct {
	parameterBase
}

func (n *numberParam) toParamDef() paramDef {
	return paramDef{
		name:        n.name,
		paramType:   "number",
		description: n.description,
		required:    n.required,
		properties:  make(map[string]*paramDef),
	}
}

func (n *numberParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, n.toParamDef())
}

type booleanParam struct {
	parameterBase
}

func (b *booleanParam) toParamDef() paramDef {
	return paramDef{
		name:        b.name,
		paramType:   "boolean",
		description: b.description,
		required:    b.required,
		properties:  make(map[string]*paramDef),
	}
}

func (b *booleanParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, b.toParamDef())
}

type stringArrayParam struct {
	parameterBase
}

func (s *stringArrayParam) toParamDef() paramDef {
	return paramDef{
		name:        s.name,
		paramType:   "array:string",
		description: s.description,
		required:    s.required,
		properties:  make(map[string]*paramDef),
	}
}

func (s *stringArrayParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, s.toParamDef())
}

type numberArrayParam struct {
	parameterBase
}

func (n *numberArrayParam) toParamDef() paramDef {
	return paramDef{
		name:        n.name,
		paramType:   "array:number",
		description: n.description,
		required:    n.required,
		properties:  make(map[string]*paramDef),
	}
}

func (n *numberArrayParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, n.toParamDef())
}

type objectParam struct {
	parameterBase
	properties []Parameter
}

func (o *objectParam) toParamDef() paramDef {
	return paramDef{
		name:        o.name,
		paramType:   "object",
		description: o.description,
		required:    o.required,
		properties:  buildPropertiesFromParams(o.properties),
	}
}

func (o *objectParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, o.toParamDef())
}

type objectArrayParam struct {
	parameterBase
	properties []Parameter
}

func (o *objectArrayParam) toParamDef() paramDef {
	props := buildPropertiesFromParams(o.properties)
	itemSchema := &paramDef{
		paramType:  "object",
		properties: props,
	}
	return paramDef{
		name:        o.name,
		paramType:   "array:object",
		description: o.description,
		required:    o.required,
		itemSchema:  itemSchema,
	}
}

func (o *objectArrayParam) apply(builder *paramBuilder) {
	builder.params = append(builder.params, o.toParamDef())
}

// outputParam is a container, not a schema field itself: Output(...)'s
// arguments describe the shape of structuredContent rather than an input.
type outputParam struct {
	parameters []Parameter
}

func (o *outputParam) toParamDef() paramDef {
	return paramDef{} // not used directly; see apply
}

func (o *outputParam) apply(builder *paramBuilder) {
	for _, param := range o.parameters {
		builder.outputParams = append(builder.outputParams, param.toParamDef())
	}
}

// Output declares the structured-output schema a tool attaches to its
// ToolResult.StructuredContent, e.g. the ranked-hit shape search_knowledge
// returns.
func Output(parameters ...Parameter) Parameter {
	return &outputParam{parameters: parameters}
}

// String declares a string input parameter.
func String(name, description string, options ...Option) Parameter {
	return &stringParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    processOptions(options),
		},
	}
}

// Number declares a numeric input parameter.
func Number(name, description string, options ...Option) Parameter {
	return &numberParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    processOptions(options),
		},
	}
}

// Boolean declares a boolean input parameter.
func Boolean(name, description string, options ...Option) Parameter {
	return &booleanParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    processOptions(options),
		},
	}
}

// StringArray declares an input parameter that is an array of strings.
func StringArray(name, description string, options ...Option) Parameter {
	return &stringArrayParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    processOptions(options),
		},
	}
}

// NumberArray declares an input parameter that is an array of numbers.
func NumberArray(name, description string, options ...Option) Parameter {
	return &numberArrayParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    processOptions(options),
		},
	}
}

// Object declares a nested object input parameter. propertiesAndOptions may
// mix child Parameters with Required() — order doesn't matter.
func Object(name, description string, propertiesAndOptions ...interface{}) Parameter {
	var properties []Parameter
	required := false

	for _, item := range propertiesAndOptions {
		if param, ok := item.(Parameter); ok {
			properties = append(properties, param)
		} else if _, ok := item.(requiredOption); ok {
			required = true
		}
	}

	return &objectParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    required,
		},
		properties: properties,
	}
}

// ObjectArray declares an input parameter that is an array of objects
// sharing the given properties.
func ObjectArray(name, description string, propertiesAndOptions ...interface{}) Parameter {
	var properties []Parameter
	required := false

	for _, item := range propertiesAndOptions {
		if param, ok := item.(Parameter); ok {
			properties = append(properties, param)
		} else if _, ok := item.(requiredOption); ok {
			required = true
		}
	}

	return &objectArrayParam{
		parameterBase: parameterBase{
			name:        name,
			description: description,
			required:    required,
		},
		properties: properties,
	}
}

// NewTool builds a ToolBuilder from a declarative parameter list — the
// shape internal/knowledgetools uses to describe search_knowledge and its
// siblings without hand-writing raw JSON Schema.
func NewTool(name, description string, parameters ...Parameter) *ToolBuilder {
	builder := &paramBuilder{}

	for _, param := range parameters {
		param.apply(builder)
	}

	return &ToolBuilder{
		name:         name,
		description:  description,
		params:       builder.params,
		outputParams: builder.outputParams,
	}
}
