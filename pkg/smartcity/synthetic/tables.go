package synthetic

// ServiceType is a category of municipal service request
type ServiceType string

const (
	TrafficSignalMalfunction ServiceType = "Traffic Signal Malfunction"
	RoadDamage               ServiceType = "Road Damage/Pothole"
	StreetLightOut           ServiceType = "Street Light Out"
	WaterMainBreak           ServiceType = "Water Main Break"
	NoiseComplaint           ServiceType = "Noise Complaint"
	GarbageCollection        ServiceType = "Garbage Collection"
	TreeDown                 ServiceType = "Tree Down/Damage"
	ElectricalHazard         ServiceType = "Electrical Hazard"
	AnimalControl            ServiceType = "Animal Control"
	PublicHealthConcern      ServiceType = "Public Health Concern"
	InfrastructureDamage     ServiceType = "Infrastructure Damage"
	EmergencyResponse        ServiceType = "Emergency Response"
)

// Priority of a service request
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Status of a service request
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
	StatusPending    Status = "Pending"
)

// ServiceTypes lists every service category; ServiceTypeWeights is indexed alongside it
var ServiceTypes = [12]ServiceType{
	TrafficSignalMalfunction, RoadDamage, StreetLightOut,
	WaterMainBreak, NoiseComplaint, GarbageCollection,
	TreeDown, ElectricalHazard, AnimalControl,
	PublicHealthConcern, InfrastructureDamage, EmergencyResponse,
}

// ServiceTypeWeights are relative request frequencies (normalized at sampling time)
var ServiceTypeWeights = [12]float64{
	0.15, 0.12, 0.10, 0.08, 0.07, 0.08,
	0.06, 0.05, 0.04, 0.06, 0.09, 0.10,
}

// HourWeights is the relative request volume for each hour of the day,
// peaking in the morning and late afternoon
var HourWeights = [24]float64{
	0.02, 0.01, 0.01, 0.01, 0.02, 0.03,
	0.05, 0.08, 0.10, 0.09, 0.08, 0.07,
	0.06, 0.07, 0.08, 0.09, 0.10, 0.11,
	0.09, 0.07, 0.05, 0.04, 0.03, 0.02,
}

// Priorities and Statuses fix the sampling order of the weight tables below
var (
	Priorities = [3]Priority{PriorityHigh, PriorityMedium, PriorityLow}
	Statuses   = [4]Status{StatusOpen, StatusInProgress, StatusClosed, StatusPending}
)

var (
	// Always High
	criticalServices = map[ServiceType]bool{
		EmergencyResponse: true,
		ElectricalHazard:  true,
		WaterMainBreak:    true,
	}
	// Drawn from UrgentPriorityWeights
	urgentServices = map[ServiceType]bool{
		TrafficSignalMalfunction: true,
		PublicHealthConcern:      true,
	}
)

// Priority weights over High/Medium for urgent services and High/Medium/Low otherwise
var (
	UrgentPriorityWeights  = [2]float64{0.7, 0.3}
	DefaultPriorityWeights = [3]float64{0.1, 0.4, 0.5}
)

// Status weights over Open/In Progress/Closed/Pending by request age
var (
	StatusWeightsOverMonth = [4]float64{0.1, 0.1, 0.7, 0.1}
	StatusWeightsOverWeek  = [4]float64{0.2, 0.3, 0.4, 0.1}
	StatusWeightsRecent    = [4]float64{0.4, 0.4, 0.1, 0.1}
)

// ResolutionBaseHours is the expected fix time at Medium priority
var ResolutionBaseHours = map[ServiceType]int{
	EmergencyResponse:        1,
	ElectricalHazard:         4,
	WaterMainBreak:           8,
	TrafficSignalMalfunction: 6,
	StreetLightOut:           24,
	RoadDamage:               72,
	PublicHealthConcern:      12,
	InfrastructureDamage:     48,
	TreeDown:                 24,
	NoiseComplaint:           48,
	GarbageCollection:        24,
	AnimalControl:            12,
}

const defaultResolutionHours = 24

// Districts a synthetic request can be filed in
var Districts = [5]string{"Lahore City", "Lahore Cantonment", "Model Town", "Gulberg", "DHA"}

// Energy model constants
const (
	// Megawatts of base load per million registered vehicles
	BaseLoadPerMillionVehicles = 450.0

	MorningPeakFactor = 1.3
	EveningPeakFactor = 1.4
	NightFactor       = 0.6
	WeekendFactor     = 0.85
	SummerFactor      = 1.6
	WinterFactor      = 1.2

	ResidentialShare = 0.45
	CommercialShare  = 0.35

	NoiseSigma = 0.05

	NominalFrequencyHz = 50.0
	FrequencySigma     = 0.1
	NominalVoltageKV   = 132.0
	VoltageSigma       = 2.0
)

// Emergency model constants
const (
	// Requests per million registered vehicles per day
	RequestsPerMillionVehicles = 150.0
	// Mean of the Poisson term added to each day's base volume
	DailyRequestJitter = 50.0

	RequestIDPrefix = "LHR"
	RequestIDOffset = 1000000

	CoordinateSigma = 0.1
)

// Default generation windows in days
const (
	DefaultEnergyWindowDays    = 30
	DefaultEmergencyWindowDays = 90
)
