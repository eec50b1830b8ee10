package logger

import "github.com/sirupsen/logrus"

// ComponentLogger adapts the global logger to the small Infof/Warnf/Errorf
// interfaces used by the registry, executor and orchestrator. Every entry
// carries a component field.
type ComponentLogger struct {
	component string
	fields    logrus.Fields
}

// ForComponent returns a logger tagged with the given component name.
func ForComponent(name string) *ComponentLogger {
	return &ComponentLogger{component: name}
}

// With returns a copy that adds fields to every entry.
func (c *ComponentLogger) With(fields logrus.Fields) *ComponentLogger {
	merged := make(logrus.Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ComponentLogger{component: c.component, fields: merged}
}

// Entry returns a logrus entry with the component and extra fields attached.
// The global logger is resolved per call so reinitialization takes effect.
func (c *ComponentLogger) Entry() *logrus.Entry {
	e := Get().WithField("component", c.component)
	if len(c.fields) > 0 {
		e = e.WithFields(c.fields)
	}
	return e
}

func (c *ComponentLogger) Debugf(format string, args ...interface{}) {
	c.Entry().Debugf(format, args...)
}

func (c *ComponentLogger) Infof(format string, args ...interface{}) {
	c.Entry().Infof(format, args...)
}

func (c *ComponentLogger) Warnf(format string, args ...interface{}) {
	c.Entry().Warnf(format, args...)
}

func (c *ComponentLogger) Errorf(format string, args ...interface{}) {
	c.Entry().Errorf(format, args...)
}
