package chaos

// ResetGlobal clears the memoized process-wide injector between tests.
var ResetGlobal = resetGlobal
