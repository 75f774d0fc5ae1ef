package common

// City defaults used throughout the pipeline
const (
	// CityName is the district every real dataset is filtered down to
	CityName = "Lahore"
	Country  = "Pakistan"
	Timezone = "Asia/Karachi"

	// City centre used for synthetic request coordinates and weather lookups
	CityLatitude  = 31.5497
	CityLongitude = 74.3436

	// Administrative bounding box used by coordinate checks
	MinLatitude  = 31.3
	MaxLatitude  = 31.8
	MinLongitude = 74.0
	MaxLongitude = 74.7

	PopulationEstimate = 13000000

	// DefaultVehicleCount is the registered vehicle total for Lahore up to 2021.
	// Used when no vehicle dataset could be collected.
	DefaultVehicleCount = 6663603

	DefaultRandomSeed = 42
)

// Column names shared by the collector, generator and validator
const (
	ColumnVehicleDistrict = "Division/ District"
	ColumnVehicleTotal    = "Total"
	ColumnVehicleCars     = "Motor Cars, Jeeps and Station Wagons"

	ColumnAccidentYear     = "YEAR"
	ColumnAccidentProvince = "PROVINCE"
	ColumnAccidentDistrict = "DISTRICT"
	ColumnAccidentCategory = "ACCIDENT/CAUSALITIES"
	ColumnAccidentCases    = "NO OF CASES"

	ColumnHealthYear         = "Year"
	ColumnHealthHospitals    = "Hospitals"
	ColumnHealthDispensaries = "Dispensaries"
	ColumnHealthBeds         = "Total Beds"

	ColumnTimestamp        = "timestamp"
	ColumnTotalConsumption = "total_consumption_mw"
	ColumnResidential      = "residential_mw"
	ColumnCommercial       = "commercial_mw"
	ColumnIndustrial       = "industrial_mw"
	ColumnGridFrequency    = "grid_frequency_hz"
	ColumnVoltage          = "voltage_kv"
	ColumnRequestID        = "request_id"
	ColumnServiceType      = "service_type"
	ColumnPriority         = "priority"
	ColumnStatus           = "status"
	ColumnLatitude         = "latitude"
	ColumnLongitude        = "longitude"
	ColumnDistrict         = "district"
	ColumnDescription      = "description"
	ColumnResolutionHours  = "estimated_resolution_hours"
)

// Dataset names used as keys between collection, generation, validation and export
const (
	DatasetVehicles   = "traffic_vehicles"
	DatasetAccidents  = "traffic_accidents"
	DatasetHealthcare = "healthcare"
	DatasetEnergy     = "energy"
	DatasetEmergency  = "emergency"
	DatasetWeather    = "weather"
)
