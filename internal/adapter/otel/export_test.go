package otel

var Sampler = sampler
