package flows

// Deps groups flow dependency sets. The root engine builds each set once at
// Build time and delegates request methods to the matching flow.
type Deps struct {
	Login          LoginDeps
	Refresh        RefreshDeps
	Logout         LogoutDeps
	Register       RegisterDeps
	Authenticate   AuthenticateDeps
	ChangePassword ChangePasswordDeps
}
