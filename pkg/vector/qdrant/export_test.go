package qdrant

var TiedAtLimit = tiedAtLimit
