package keys

import "strings"

// Category groups logical settings for documentation and tooling.
type Category string

const (
	CategoryConnection  Category = "connection"
	CategoryTransaction Category = "transaction"
	CategoryValidation  Category = "validation"
	CategoryCache       Category = "cache"
	CategoryClassLoad   Category = "class-loading"
	CategoryExtension   Category = "extension"
	CategoryMapping     Category = "mapping"
	CategoryEnhancement Category = "enhancement"
	CategoryRuntime     Category = "runtime"
)

// Setting is one logical setting and the literal keys that spell it.
// Spellings are ordered native, successor, legacy; only Legacy is deprecated.
type Setting struct {
	Name      string
	Category  Category
	Native    string
	Successor string
	Legacy    string
	// Prefix marks settings whose Native spelling is a key prefix
	// (e.g. per-role cache declarations).
	Prefix      bool
	Description string
}

// Spellings returns the non-empty literal keys in precedence order.
func (s Setting) Spellings() []string {
	out := make([]string, 0, 3)
	for _, key := range []string{s.Native, s.Successor, s.Legacy} {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

// Preferred returns the spelling new configuration should use.
func (s Setting) Preferred() string {
	if s.Successor != "" {
		return s.Successor
	}
	return s.Native
}

// IsLegacy reports whether key is the deprecated spelling of s.
func (s Setting) IsLegacy(key string) bool {
	return s.Legacy != "" && key == s.Legacy
}

// Matches reports whether key spells s.
func (s Setting) Matches(key string) bool {
	if s.Prefix {
		return strings.HasPrefix(key, s.Native+".")
	}
	for _, spelling := range s.Spellings() {
		if spelling == key {
			return true
		}
	}
	return false
}

// Logical setting names.
const (
	SettingURL                    = "URL"
	SettingDriver                 = "DRIVER"
	SettingUser                   = "USER"
	SettingPassword               = "PASSWORD"
	SettingJTADataSource          = "JTA_DATASOURCE"
	SettingNonJTADataSource       = "NON_JTA_DATASOURCE"
	SettingDataSource             = "DATASOURCE"
	SettingTransactionType        = "TRANSACTION_TYPE"
	SettingCoordinatorStrategy    = "TRANSACTION_COORDINATOR_STRATEGY"
	SettingFlushBeforeCompletion  = "FLUSH_BEFORE_COMPLETION"
	SettingValidationMode         = "VALIDATION_MODE"
	SettingValidatorFactory       = "VALIDATOR_FACTORY"
	SettingSharedCacheMode        = "SHARED_CACHE_MODE"
	SettingEntityCache            = "ENTITY_CACHE"
	SettingCollectionCache        = "COLLECTION_CACHE"
	SettingClassLoaders           = "CLASSLOADERS"
	SettingIntegratorProvider     = "INTEGRATOR_PROVIDER"
	SettingStrategyProviders      = "STRATEGY_REGISTRATION_PROVIDERS"
	SettingTypeContributors       = "TYPE_CONTRIBUTORS"
	SettingMetadataContributor    = "METADATA_BUILDER_CONTRIBUTOR"
	SettingPersistenceUnitName    = "PERSISTENCE_UNIT_NAME"
	SettingRuntimeName            = "RUNTIME_NAME"
	SettingConfigFile             = "CONFIG_FILE"
	SettingLoadedClasses          = "LOADED_CLASSES"
	SettingHbmXMLFiles            = "HBM_XML_FILES"
	SettingOrmXMLFiles            = "ORM_XML_FILES"
	SettingScannerDiscovery       = "SCANNER_DISCOVERY"
	SettingDirtyTracking          = "ENHANCER_DIRTY_TRACKING"
	SettingLazyInitialization     = "ENHANCER_LAZY_INITIALIZATION"
	SettingAssociationManagement  = "ENHANCER_ASSOCIATION_MANAGEMENT"
	SettingAllowJTATransaction    = "ALLOW_JTA_TRANSACTION_ACCESS"
	SettingAllowRefreshDetached   = "ALLOW_REFRESH_DETACHED_ENTITY"
	SettingRuntimeFactoryObserver = "RUNTIME_FACTORY_OBSERVER"
	SettingPoolSize               = "POOL_SIZE"
	SettingPoolMaxIdle            = "POOL_MAX_IDLE"
	SettingPoolMaxLifetime        = "POOL_MAX_LIFETIME"
)

var table = []Setting{
	{Name: SettingURL, Category: CategoryConnection, Native: URL, Successor: JakartaJDBCURL, Legacy: JavaxJDBCURL, Description: "JDBC-style connection URL"},
	{Name: SettingDriver, Category: CategoryConnection, Native: Driver, Successor: JakartaJDBCDriver, Legacy: JavaxJDBCDriver, Description: "database/sql driver name"},
	{Name: SettingUser, Category: CategoryConnection, Native: User, Successor: JakartaJDBCUser, Legacy: JavaxJDBCUser, Description: "connection user"},
	{Name: SettingPassword, Category: CategoryConnection, Native: Pass, Successor: JakartaJDBCPassword, Legacy: JavaxJDBCPassword, Description: "connection password"},
	{Name: SettingJTADataSource, Category: CategoryConnection, Successor: JakartaJTADataSource, Legacy: JavaxJTADataSource, Description: "JTA data source reference"},
	{Name: SettingNonJTADataSource, Category: CategoryConnection, Successor: JakartaNonJTADataSource, Legacy: JavaxNonJTADataSource, Description: "non-JTA data source reference"},
	{Name: SettingDataSource, Category: CategoryConnection, Native: DataSource, Description: "generic data source reference"},
	{Name: SettingPoolSize, Category: CategoryConnection, Native: PoolSize, Description: "maximum open pooled connections"},
	{Name: SettingPoolMaxIdle, Category: CategoryConnection, Native: PoolMaxIdle, Description: "maximum idle pooled connections"},
	{Name: SettingPoolMaxLifetime, Category: CategoryConnection, Native: PoolMaxLifetime, Description: "maximum pooled connection lifetime (Go duration)"},
	{Name: SettingTransactionType, Category: CategoryTransaction, Successor: JakartaTransactionType, Legacy: JavaxTransactionType, Description: "JTA or RESOURCE_LOCAL"},
	{Name: SettingCoordinatorStrategy, Category: CategoryTransaction, Native: TransactionCoordinatorStrategy, Description: "transaction coordinator strategy override"},
	{Name: SettingFlushBeforeCompletion, Category: CategoryTransaction, Native: FlushBeforeCompletion, Description: "always forced to false"},
	{Name: SettingAllowJTATransaction, Category: CategoryTransaction, Native: AllowJTATransactionAccess, Description: "expose the transaction handle under JTA"},
	{Name: SettingValidationMode, Category: CategoryValidation, Successor: JakartaValidationMode, Legacy: JavaxValidationMode, Description: "AUTO, CALLBACK or NONE"},
	{Name: SettingValidatorFactory, Category: CategoryValidation, Successor: JakartaValidationFactory, Legacy: JavaxValidationFactory, Description: "validator factory instance"},
	{Name: SettingSharedCacheMode, Category: CategoryCache, Successor: JakartaSharedCacheMode, Legacy: JavaxSharedCacheMode, Description: "second-level cache selection mode"},
	{Name: SettingEntityCache, Category: CategoryCache, Native: ClassCachePrefix, Prefix: true, Description: "usage[,region[,lazy]] per entity role"},
	{Name: SettingCollectionCache, Category: CategoryCache, Native: CollectionCachePrefix, Prefix: true, Description: "usage[,region] per collection role"},
	{Name: SettingClassLoaders, Category: CategoryClassLoad, Native: ClassLoaders, Description: "additional class loaders"},
	{Name: SettingIntegratorProvider, Category: CategoryExtension, Native: IntegratorProvider, Description: "integrator provider instance, type or name"},
	{Name: SettingStrategyProviders, Category: CategoryExtension, Native: StrategyRegistrationProviders, Description: "strategy registration provider list"},
	{Name: SettingTypeContributors, Category: CategoryExtension, Native: TypeContributors, Description: "type contributor list"},
	{Name: SettingMetadataContributor, Category: CategoryExtension, Native: MetadataBuilderContributor, Description: "metadata builder contributor instance, type or name"},
	{Name: SettingPersistenceUnitName, Category: CategoryRuntime, Native: PersistenceUnitName, Description: "derived from the descriptor"},
	{Name: SettingRuntimeName, Category: CategoryRuntime, Native: SessionFactoryName, Description: "runtime factory name"},
	{Name: SettingConfigFile, Category: CategoryRuntime, Native: CfgXMLFile, Description: "legacy config file reference"},
	{Name: SettingRuntimeFactoryObserver, Category: CategoryRuntime, Native: SessionFactoryObserver, Description: "runtime factory observer strategy"},
	{Name: SettingAllowRefreshDetached, Category: CategoryRuntime, Native: AllowRefreshDetachedEntity, Description: "allow refreshing detached entities"},
	{Name: SettingLoadedClasses, Category: CategoryMapping, Native: LoadedClasses, Description: "explicit class references"},
	{Name: SettingHbmXMLFiles, Category: CategoryMapping, Native: HbmXMLFiles, Description: "comma separated mapping files"},
	{Name: SettingOrmXMLFiles, Category: CategoryMapping, Native: OrmXMLFiles, Description: "list of mapping files"},
	{Name: SettingScannerDiscovery, Category: CategoryMapping, Native: ScannerDiscovery, Description: "scanner discovery mode"},
	{Name: SettingDirtyTracking, Category: CategoryEnhancement, Native: EnhancerEnableDirtyTracking, Description: "defaults to true"},
	{Name: SettingLazyInitialization, Category: CategoryEnhancement, Native: EnhancerEnableLazyInitialization, Description: "defaults to true"},
	{Name: SettingAssociationManagement, Category: CategoryEnhancement, Native: EnhancerEnableAssociationManagement, Description: "defaults to false"},
}

var byName = func() map[string]Setting {
	out := make(map[string]Setting, len(table))
	for _, setting := range table {
		out[setting.Name] = setting
	}
	return out
}()

var byKey = func() map[string]Setting {
	out := map[string]Setting{}
	for _, setting := range table {
		if setting.Prefix {
			continue
		}
		for _, key := range setting.Spellings() {
			out[key] = setting
		}
	}
	return out
}()

// Lookup returns the logical setting registered under name.
func Lookup(name string) (Setting, bool) {
	setting, ok := byName[name]
	return setting, ok
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Setting {
	setting, ok := byName[name]
	if !ok {
		panic("keys: unknown setting " + name)
	}
	return setting
}

// ForKey resolves a literal key, including prefixed keys, to its setting.
func ForKey(key string) (Setting, bool) {
	if setting, ok := byKey[key]; ok {
		return setting, true
	}
	for _, setting := range table {
		if setting.Prefix && setting.Matches(key) {
			return setting, true
		}
	}
	return Setting{}, false
}

// All returns the key table in declaration order.
func All() []Setting {
	out := make([]Setting, len(table))
	copy(out, table)
	return out
}
