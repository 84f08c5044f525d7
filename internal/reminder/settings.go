package reminder

// DefaultConfigs returns the hardcoded per-type configuration used when
// neither the organization nor the resource sets one: a follow-up half an
// hour after creation, a single heads-up three days before the due date,
// and a reminder at the due instant itself.
func DefaultConfigs() map[ReminderType]TemplateConfig {
	return map[ReminderType]TemplateConfig{
		TypeAfterCreation: {
			Enabled: true,
			Template: Message{
				Title: "Novo compromisso: [titulo]",
				Body:  "Olá [nome], o [tipo_recurso] [titulo] foi criado em [data_criacao] às [hora_criacao].",
			},
			Delay:  Delay{Value: 30, Unit: UnitMinutesDelay},
			Repeat: Repeat{Type: RepeatNone},
		},
		TypeBeforeDue: {
			Enabled: true,
			Template: Message{
				Title: "Lembrete: [titulo]",
				Body:  "Olá [nome], faltam [dias_para_vencimento] dias para [titulo] ([data_evento] às [hora_evento]).",
			},
			Repeat: Repeat{Type: RepeatDays, Interval: 3, Duration: DurationCount, Count: 1},
		},
		TypeOnDue: {
			Enabled: true,
			Template: Message{
				Title: "Hoje: [titulo]",
				Body:  "Olá [nome], [titulo] acontece hoje ([data_evento] às [hora_evento]).",
			},
			Repeat: Repeat{Type: RepeatNone},
		},
	}
}

// defaultInstantTemplate is the message used by instant sends when the
// caller does not provide one.
var defaultInstantTemplate = Message{
	Title: "Lembrete: [titulo]",
	Body:  "Olá [nome], não esqueça de [titulo] ([data_evento] às [hora_evento]).",
}

// EffectiveConfig resolves the configuration for one trigger type by
// layering the resource override over the organization setting over the
// default, field by field. Unset override fields fall through.
func EffectiveConfig(orgTemplates, resourceTemplates map[ReminderType]TemplateOverride, typ ReminderType) TemplateConfig {
	cfg := DefaultConfigs()[typ]
	if orgTemplates != nil {
		if ov, ok := orgTemplates[typ]; ok {
			cfg = applyOverride(cfg, ov)
		}
	}
	if resourceTemplates != nil {
		if ov, ok := resourceTemplates[typ]; ok {
			cfg = applyOverride(cfg, ov)
		}
	}
	return cfg
}

func applyOverride(cfg TemplateConfig, ov TemplateOverride) TemplateConfig {
	if ov.Enabled != nil {
		cfg.Enabled = *ov.Enabled
	}
	if ov.Title != nil {
		cfg.Template.Title = *ov.Title
	}
	if ov.Body != nil {
		cfg.Template.Body = *ov.Body
	}
	if ov.Delay != nil {
		cfg.Delay = *ov.Delay
	}
	if ov.Repeat != nil {
		cfg.Repeat = *ov.Repeat
	}
	if ov.ReferenceDate != nil {
		cfg.ReferenceDate = ov.ReferenceDate
	}
	return cfg
}
