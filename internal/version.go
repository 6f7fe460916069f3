package internal

// Version is the lingogate release version
const Version = "0.3.0"
