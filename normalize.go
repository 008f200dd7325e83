package unitboot

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/layering"
	"github.com/goliatone/go-unitboot/registry"
)

var (
	urlKeys    = keys.MustLookup(keys.SettingURL).Spellings()
	driverKeys = keys.MustLookup(keys.SettingDriver).Spellings()
	userKeys   = keys.MustLookup(keys.SettingUser).Spellings()
	passKeys   = keys.MustLookup(keys.SettingPassword).Spellings()
	jtaKeys    = keys.MustLookup(keys.SettingJTADataSource).Spellings()
	nonJTAKeys = keys.MustLookup(keys.SettingNonJTADataSource).Spellings()
)

// normalization is the state threaded through one merge: the settings being
// built, the descriptor and the resolved coordinator flavour.
type normalization struct {
	unit       string
	descriptor *Descriptor
	settings   *MergedSettings
	diag       *Diagnostics
	selector   *registry.StrategySelector
	dataSource registry.DataSource
	logger     *slog.Logger

	// work is the private copy of the integration overrides. Resolvers
	// consume the keys they handle.
	work map[string]any
	jta  bool
}

func sourceLabel(level layering.Level, name string) string {
	return layering.Source{Name: name, Level: level}.Label()
}

// reconcile resolves synonym spellings present together in one source: the
// first non-nil value in native, successor, legacy order is written to every
// spelling carrying a value. Legacy spellings are reported as deprecated.
func (n *normalization) reconcile(values map[string]any) {
	for _, setting := range keys.All() {
		if setting.Prefix {
			continue
		}
		spellings := setting.Spellings()
		if len(spellings) < 2 {
			continue
		}
		var winner any
		present := 0
		for _, key := range spellings {
			value, ok := values[key]
			if ok && setting.IsLegacy(key) {
				n.diag.Deprecated(key, setting.Preferred())
			}
			if value != nil {
				if winner == nil {
					winner = value
				}
				present++
			}
		}
		if present < 2 {
			continue
		}
		for _, key := range spellings {
			if values[key] != nil {
				values[key] = winner
			}
		}
	}
}

func (n *normalization) normalize(overrides map[string]any) error {
	n.work = maps.Clone(overrides)
	if n.work == nil {
		n.work = map[string]any{}
	}
	// The config file reference was resolved before normalization.
	delete(n.work, keys.CfgXMLFile)
	n.reconcile(n.work)

	n.resolveCredentials()
	if err := n.resolveTransactionCoordinator(); err != nil {
		return err
	}
	n.resolveDataAccess()
	n.resolveMode(keys.JakartaValidationMode, keys.JavaxValidationMode, n.descriptorValidationMode(), "validation")
	n.resolveMode(keys.JakartaSharedCacheMode, keys.JavaxSharedCacheMode, n.descriptorSharedCacheMode(), "shared-cache")

	integration := sourceLabel(layering.LevelIntegration, "")
	for _, key := range layering.SortedKeys(n.work) {
		value := n.work[key]
		if value == nil {
			n.settings.remove(key, integration, layering.LevelIntegration)
			continue
		}
		n.settings.put(key, value, integration, layering.LevelIntegration)
	}
	return nil
}

func (n *normalization) write(resolver string, value any, targets ...string) {
	label := sourceLabel(layering.LevelNormalized, resolver)
	for _, key := range targets {
		n.settings.put(key, value, label, layering.LevelNormalized)
	}
}

// consume removes every key from the working copy and returns the first
// non-nil value in key order.
func (n *normalization) consume(names ...string) any {
	var found any
	for _, key := range names {
		value, ok := n.work[key]
		if !ok {
			continue
		}
		delete(n.work, key)
		if found == nil {
			found = value
		}
	}
	return found
}

func (n *normalization) firstMerged(names ...string) any {
	for _, key := range names {
		if value := n.settings.Value(key); value != nil {
			return value
		}
	}
	return nil
}

func (n *normalization) firstDescriptor(names ...string) any {
	for _, key := range names {
		if value := n.descriptor.property(key); value != nil {
			return value
		}
	}
	return nil
}

// resolveCredentials resolves user and password independently and publishes
// each under every spelling.
func (n *normalization) resolveCredentials() {
	for _, spellings := range [][]string{userKeys, passKeys} {
		value := coalesce(
			n.consume(spellings...),
			n.firstMerged(spellings...),
			n.firstDescriptor(spellings...),
		)
		if value != nil {
			n.write("credentials", value, spellings...)
		}
	}
}

func (n *normalization) resolveTransactionCoordinator() error {
	var (
		txType TransactionType
		err    error
	)
	if raw := n.consume(keys.JakartaTransactionType, keys.JavaxTransactionType); raw != nil {
		txType, err = n.transactionType(raw)
	} else if n.descriptor != nil && n.descriptor.TransactionType != "" {
		txType, err = n.transactionType(n.descriptor.TransactionType)
	} else if raw := n.firstMerged(keys.JakartaTransactionType, keys.JavaxTransactionType); raw != nil {
		txType, err = n.transactionType(raw)
	} else {
		n.logger.Debug("transaction type not specified, falling back to RESOURCE_LOCAL")
		txType = TransactionResourceLocal
	}
	if err != nil {
		return err
	}
	n.write("transaction", string(txType), keys.JakartaTransactionType)

	if override, ok := n.work[keys.TransactionCoordinatorStrategy]; ok && override != nil {
		delete(n.work, keys.TransactionCoordinatorStrategy)
		n.write("transaction", override, keys.TransactionCoordinatorStrategy)
	}

	if strategy := n.settings.Value(keys.TransactionCoordinatorStrategy); strategy != nil {
		n.diag.StrategyOverridden(keys.TransactionCoordinatorStrategy)
		n.jta = false
		builder, err := registry.SelectStrategy[TransactionCoordinatorBuilder](n.selector, RoleTransactionCoordinator, strategy)
		if err != nil {
			n.logger.Debug("cannot inspect coordinator override", "strategy", formatValue(strategy), "error", err)
		} else {
			n.jta = builder.IsJTA()
		}
	} else {
		name := CoordinatorJDBC
		n.jta = txType == TransactionJTA
		if n.jta {
			name = CoordinatorJTA
		}
		n.write("transaction", name, keys.TransactionCoordinatorStrategy)
	}
	n.settings.setJTACoordinator(n.jta)
	return nil
}

func (n *normalization) transactionType(raw any) (TransactionType, error) {
	txType, err := ParseTransactionType(raw)
	if err != nil {
		return "", &ConfigurationError{Unit: n.unit, Key: keys.JakartaTransactionType, Value: raw, Reason: "cannot determine transaction type", Err: err}
	}
	return txType, nil
}

// resolveDataAccess walks the connection ladder; the first rung that holds
// a value wins.
func (n *normalization) resolveDataAccess() {
	jta, nonJTA := true, false

	if n.dataSource != nil {
		n.applyDataSource(n.dataSource, nil)
		return
	}
	if ref, ok := n.takeReference(keys.DataSource); ok {
		n.applyDataSource(ref, nil)
		return
	}
	for _, key := range jtaKeys {
		if ref, ok := n.takeReference(key); ok {
			n.applyDataSource(ref, &jta)
			return
		}
	}
	for _, key := range nonJTAKeys {
		if ref, ok := n.takeReference(key); ok {
			n.applyDataSource(ref, &nonJTA)
			return
		}
	}

	// A native URL accepts a driver under any spelling; successor and
	// legacy URLs only under their own.
	for i, key := range urlKeys {
		if url := n.work[key]; url != nil {
			candidates := driverKeys
			if i > 0 {
				candidates = driverKeys[i : i+1]
			}
			driver := firstString(n.work, candidates...)
			if driver == "" {
				driver = firstString(n.settings.rawValues(), candidates...)
			}
			n.applyJdbcSettings(url, driver)
			return
		}
	}

	if n.descriptor != nil && n.descriptor.JTADataSource != nil {
		n.applyDataSource(n.descriptor.JTADataSource, &jta)
		return
	}
	if n.descriptor != nil && n.descriptor.NonJTADataSource != nil {
		n.applyDataSource(n.descriptor.NonJTADataSource, &nonJTA)
		return
	}

	for i, key := range urlKeys {
		url := n.settings.Value(key)
		if url == nil {
			continue
		}
		if str, ok := url.(string); ok && str == "" {
			continue
		}
		n.applyJdbcSettings(url, stringValue(n.settings.Value(driverKeys[i])))
		return
	}
}

// takeReference consumes a data source key from the working copy. A key
// holding nil is consumed without matching.
func (n *normalization) takeReference(key string) (any, bool) {
	ref, ok := n.work[key]
	if !ok {
		return nil, false
	}
	delete(n.work, key)
	return ref, ref != nil
}

// applyDataSource binds ref as the connection source and clears every
// competing representation, credentials included: a data source carries
// its own.
func (n *normalization) applyDataSource(ref any, useJTA *bool) {
	isJTA := n.jta
	if useJTA != nil {
		isJTA = *useJTA
	}
	primary, inverse := nonJTAKeys, jtaKeys
	if isJTA {
		primary, inverse = jtaKeys, nonJTAKeys
	}
	n.write("data-source", ref, primary...)

	n.cleanUp(true, inverse...)
	n.cleanUp(true, driverKeys...)
	n.cleanUp(true, urlKeys...)
	n.cleanUp(true, userKeys...)
	n.cleanUp(true, passKeys...)

	n.cleanUp(false, keys.DataSource)
	n.cleanUp(false, jtaKeys...)
	n.cleanUp(false, nonJTAKeys...)

	n.write("data-source", ref, keys.DataSource)
	n.logger.Debug("data source applied", "jta", isJTA)
}

// applyJdbcSettings makes url the connection source and clears every data
// source representation. A missing driver clears the driver keys.
func (n *normalization) applyJdbcSettings(url any, driver string) {
	n.write("jdbc", url, urlKeys...)
	if driver != "" {
		n.write("jdbc", driver, driverKeys...)
	} else {
		for _, key := range driverKeys {
			n.removeMerged(key, "jdbc")
		}
	}

	n.cleanUp(false, driverKeys...)
	n.cleanUp(false, urlKeys...)
	n.cleanUp(false, userKeys...)
	n.cleanUp(false, passKeys...)

	n.cleanUp(true, keys.DataSource)
	n.cleanUp(true, jtaKeys...)
	n.cleanUp(true, nonJTAKeys...)
	n.logger.Debug("jdbc settings applied", "driver", driver)
}

// cleanUp removes keys from the working copy and, when merged is set, from
// the merged settings too.
func (n *normalization) cleanUp(merged bool, names ...string) {
	for _, key := range names {
		if value, ok := n.work[key]; ok {
			delete(n.work, key)
			if value != nil {
				n.diag.Removed(key, "integration override replaced by normalization")
			}
		}
		if merged {
			n.removeMerged(key, "cleanup")
		}
	}
}

func (n *normalization) removeMerged(key, resolver string) {
	if removed := n.settings.remove(key, sourceLabel(layering.LevelNormalized, resolver), layering.LevelNormalized); removed != nil {
		n.diag.Removed(key, "merged setting replaced by normalization")
	}
}

// resolveMode coalesces a successor/legacy pair from the working copy, then
// the descriptor, and publishes the result under the successor key.
func (n *normalization) resolveMode(successor, legacy string, declared string, resolver string) {
	if value := n.consume(successor, legacy); value != nil {
		n.write(resolver, value, successor)
		return
	}
	if declared != "" {
		n.write(resolver, declared, successor)
	}
}

func (n *normalization) descriptorValidationMode() string {
	if n.descriptor == nil {
		return ""
	}
	return n.descriptor.ValidationMode
}

func (n *normalization) descriptorSharedCacheMode() string {
	if n.descriptor == nil {
		return ""
	}
	return n.descriptor.SharedCacheMode
}

func coalesce(values ...any) any {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}

func firstString(values map[string]any, names ...string) string {
	for _, key := range names {
		if str := stringValue(values[key]); str != "" {
			return str
		}
	}
	return ""
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
