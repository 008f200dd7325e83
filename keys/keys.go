// Package keys holds the closed namespace of configuration keys understood by
// the bootstrap, grouped into logical settings with their accepted spellings.
package keys

// Connection settings.
const (
	URL            = "hibernate.connection.url"
	JakartaJDBCURL = "jakarta.persistence.jdbc.url"
	JavaxJDBCURL   = "javax.persistence.jdbc.url"

	Driver            = "hibernate.connection.driver_class"
	JakartaJDBCDriver = "jakarta.persistence.jdbc.driver"
	JavaxJDBCDriver   = "javax.persistence.jdbc.driver"

	User            = "hibernate.connection.username"
	JakartaJDBCUser = "jakarta.persistence.jdbc.user"
	JavaxJDBCUser   = "javax.persistence.jdbc.user"

	Pass                = "hibernate.connection.password"
	JakartaJDBCPassword = "jakarta.persistence.jdbc.password"
	JavaxJDBCPassword   = "javax.persistence.jdbc.password"

	DataSource              = "hibernate.connection.datasource"
	JakartaJTADataSource    = "jakarta.persistence.jtaDataSource"
	JavaxJTADataSource      = "javax.persistence.jtaDataSource"
	JakartaNonJTADataSource = "jakarta.persistence.nonJtaDataSource"
	JavaxNonJTADataSource   = "javax.persistence.nonJtaDataSource"

	PoolSize        = "hibernate.connection.pool_size"
	PoolMaxIdle     = "hibernate.connection.pool_max_idle"
	PoolMaxLifetime = "hibernate.connection.pool_max_lifetime"
)

// Transaction settings.
const (
	JakartaTransactionType         = "jakarta.persistence.transactionType"
	JavaxTransactionType           = "javax.persistence.transactionType"
	TransactionCoordinatorStrategy = "hibernate.transaction.coordinator_class"
	FlushBeforeCompletion          = "hibernate.transaction.flush_before_completion"
	AllowJTATransactionAccess      = "hibernate.jta.allowTransactionAccess"
)

// Validation settings.
const (
	JakartaValidationMode    = "jakarta.persistence.validation.mode"
	JavaxValidationMode      = "javax.persistence.validation.mode"
	JakartaValidationFactory = "jakarta.persistence.validation.factory"
	JavaxValidationFactory   = "javax.persistence.validation.factory"
)

// Cache settings.
const (
	JakartaSharedCacheMode = "jakarta.persistence.sharedCache.mode"
	JavaxSharedCacheMode   = "javax.persistence.sharedCache.mode"
	ClassCachePrefix       = "hibernate.classcache"
	CollectionCachePrefix  = "hibernate.collectioncache"
)

// Class loading and extension points.
const (
	ClassLoaders                  = "hibernate.classLoaders"
	IntegratorProvider            = "hibernate.integrator_provider"
	StrategyRegistrationProviders = "hibernate.strategy_registration_provider"
	TypeContributors              = "hibernate.type_contributors"
	MetadataBuilderContributor    = "hibernate.metadata_builder_contributor"
)

// Unit, mapping and runtime settings.
const (
	PersistenceUnitName        = "hibernate.persistenceUnitName"
	SessionFactoryName         = "hibernate.session_factory_name"
	CfgXMLFile                 = "hibernate.cfg_xml_file"
	LoadedClasses              = "hibernate.loaded_classes"
	HbmXMLFiles                = "hibernate.hbm_xml_files"
	OrmXMLFiles                = "hibernate.orm_xml_files"
	ScannerDiscovery           = "hibernate.archive.autodetection"
	AllowRefreshDetachedEntity = "hibernate.allow_refresh_detached_entity"
	SessionFactoryObserver     = "hibernate.session_factory_observer"
)

// Bytecode enhancement settings.
const (
	EnhancerEnableDirtyTracking         = "hibernate.enhancer.enableDirtyTracking"
	EnhancerEnableLazyInitialization    = "hibernate.enhancer.enableLazyInitialization"
	EnhancerEnableAssociationManagement = "hibernate.enhancer.enableAssociationManagement"
)
