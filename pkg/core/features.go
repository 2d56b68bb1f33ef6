package core

import (
	log "github.com/sirupsen/logrus"
)

// Feature versions of the host API. A module declares the features it uses
// in its metadata. The feature gate matches declared features by name only;
// a declared version is not compared with the versions listed here.
var (
	// FeatureCompilerVersion is the toolchain line the daemon was built with.
	FeatureCompilerVersion = Feature{Name: "compiler_version", Version: "1.24"}
	// FeaturePluginAPI covers module definition and registration.
	FeaturePluginAPI = Feature{Name: "plugin_api", Version: "0.2"}
	// FeatureSDModuleTrait covers the SDModule interface itself.
	FeatureSDModuleTrait = Feature{Name: "sdmodule_trait", Version: "0.2"}
	// FeatureCore covers direct access to the device core.
	FeatureCore = Feature{Name: "core", Version: "0.2"}
	// FeatureCoreMethods covers the core handle's method set.
	FeatureCoreMethods = Feature{Name: "core_methods", Version: "0.2"}
	// FeatureConfig covers the device config store.
	FeatureConfig = Feature{Name: "config", Version: "0.2"}
	// FeatureModuleManager covers the module registry.
	FeatureModuleManager = Feature{Name: "module_manager", Version: "0.2"}
	// FeatureCoreEvents covers the SDCoreEvent set.
	FeatureCoreEvents = Feature{Name: "core_events", Version: "0.2"}
	// FeatureGlobalEvents covers the SDGlobalEvent set.
	FeatureGlobalEvents = Feature{Name: "global_events", Version: "0.1"}
	// FeatureRendering covers module participation in rendering.
	FeatureRendering = Feature{Name: "rendering", Version: "0.2"}
	// FeatureSocketAPI covers the daemon's socket protocol.
	FeatureSocketAPI = Feature{Name: "socket_api", Version: "0.2"}
)

// SupportedFeatures lists every feature the daemon currently provides. A
// module may declare this whole list to opt into everything.
var SupportedFeatures = []Feature{
	FeatureCompilerVersion,
	FeaturePluginAPI,
	FeatureSDModuleTrait,
	FeatureCore,
	FeatureCoreMethods,
	FeatureConfig,
	FeatureModuleManager,
	FeatureCoreEvents,
	FeatureGlobalEvents,
	FeatureRendering,
	FeatureSocketAPI,
}

// SystemModuleName is the identity used for core-internal and socket-originated
// calls. It implicitly declares every supported feature.
const SystemModuleName = "-system-"

// featureListContains reports whether features declares the named feature,
// at any version.
func featureListContains(features []Feature, name string) bool {
	for _, f := range features {
		if f.Name == name {
			return true
		}
	}
	return false
}

// warnForFeature logs one warning line when a module uses a feature it has
// not declared. The gate is advisory: the call proceeds either way, the log
// line exists so operators can spot plugins that will break on the next
// version bump of that feature.
func warnForFeature(moduleName string, features []Feature, name string) {
	if !featureListContains(features, name) {
		log.Warnf("Module '%s' is using unreported feature '%s', declare it in plugin metadata to avoid breakage on future version changes", moduleName, name)
	}
}
