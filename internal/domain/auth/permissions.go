package auth

const (
	RoleEmployee    = "employee"
	RolePayroll     = "payroll"
	RoleHR          = "hr"
	RoleSystemAdmin = "system_admin"
)

const (
	PermYearEndRead    = "yearend.read"
	PermYearEndRun     = "yearend.run"
	PermYearEndConfirm = "yearend.confirm"
	PermYearEndPay     = "yearend.pay"
	PermAuditRead      = "audit.read"
	PermSystemAdmin    = "admin.system"
)

var DefaultPermissions = []string{
	PermYearEndRead,
	PermYearEndRun,
	PermYearEndConfirm,
	PermYearEndPay,
	PermAuditRead,
	PermSystemAdmin,
}

// RolePermissions is the grant set seeded for every tenant. Payroll staff
// run and pay; only HR confirms a result.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermYearEndRead,
	},
	RolePayroll: {
		PermYearEndRead,
		PermYearEndRun,
		PermYearEndPay,
	},
	RoleHR: {
		PermYearEndRead,
		PermYearEndRun,
		PermYearEndConfirm,
		PermYearEndPay,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
	},
}
