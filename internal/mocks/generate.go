package mocks

//go:generate mockery --name Source --srcpkg github.com/aevon-lab/geosplit/internal/source --output ./source --outpkg sourcemocks --with-expecter
//go:generate mockery --name Sink --srcpkg github.com/aevon-lab/geosplit/internal/destination --output ./destination --outpkg destinationmocks --with-expecter
