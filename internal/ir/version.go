package ir

// StoreVersion is the object store library version.
const StoreVersion = "0.1.0"
