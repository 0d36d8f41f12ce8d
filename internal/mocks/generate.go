package mocks

//go:generate mockery --name Source --srcpkg github.com/aevon-lab/aevon-topn/internal/segment --output ./segment --outpkg segmentmocks --with-expecter
